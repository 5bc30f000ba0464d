package models

// CustodyBalance is a custodial token balance held for one account.
type CustodyBalance struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	Account   string `gorm:"column:account;size:64;uniqueIndex;not null" json:"account"`
	Balance   uint64 `gorm:"column:balance" json:"balance"`
	UpdatedAt int64  `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (CustodyBalance) TableName() string {
	return "custody_balances"
}
