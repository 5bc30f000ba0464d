package models

// Settlement status values.
const (
	SettlementPending = "pending"
	SettlementSending = "sending"
	SettlementSettled = "settled"
)

// Settlement is an on-chain transfer booked by the ledger and sent after
// the booking committed.
type Settlement struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Address     string `gorm:"column:address;size:64;uniqueIndex;not null" json:"address"`
	FromAccount string `gorm:"column:from_account;size:64;not null" json:"from_account"`
	ToAccount   string `gorm:"column:to_account;size:64;not null" json:"to_account"`
	Amount      uint64 `gorm:"column:amount" json:"amount"`
	Status      string `gorm:"column:status;size:16;index;not null" json:"status"`
	Signature   string `gorm:"column:signature;size:128" json:"signature,omitempty"`
	Attempts    uint32 `gorm:"column:attempts" json:"attempts"`
	LastError   string `gorm:"column:last_error;size:256" json:"last_error,omitempty"`
	CreatedAt   int64  `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt   int64  `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}
