package models

import (
	"database/sql"
	"time"
)

// Account represents a chat user and their prepaid balance
type Account struct {
	ChatID    int64 `db:"chat_id" json:"chat_id"`
	Balance   Money `db:"balance" json:"balance"`
	CreatedAt int64 `db:"created_at" json:"created_at"`
}

// Item represents a movie in the catalog
type Item struct {
	ID          string `db:"id" json:"id" yaml:"id"`
	Title       string `db:"title" json:"title" yaml:"title"`
	Price       Money  `db:"price" json:"price" yaml:"price"`
	ContentRef  string `db:"content_ref" json:"content_ref" yaml:"content_ref"`
	ThumbRef    string `db:"thumb_ref" json:"thumb_ref,omitempty" yaml:"thumb_ref"`
	Description string `db:"description" json:"description,omitempty" yaml:"description"`
}

// Purchase is an append-only audit entry
type Purchase struct {
	ID          string         `db:"id" json:"id"`
	ChatID      int64          `db:"chat_id" json:"chat_id"`
	ItemID      sql.NullString `db:"item_id" json:"item_id"`
	Amount      Money          `db:"amount" json:"amount"`
	Method      string         `db:"method" json:"method"`
	ExternalRef sql.NullString `db:"external_ref" json:"external_ref"`
	CreatedAt   int64          `db:"created_at" json:"created_at"`
}

// Time returns the creation timestamp
func (p Purchase) Time() time.Time {
	return time.Unix(p.CreatedAt, 0)
}

// Intent is a payment that was initiated but not yet confirmed by a callback
type Intent struct {
	ExternalRef string         `db:"external_ref" json:"external_ref"`
	ChatID      int64          `db:"chat_id" json:"chat_id"`
	ItemID      sql.NullString `db:"item_id" json:"item_id"`
	Amount      Money          `db:"amount" json:"amount"`
	Kind        string         `db:"kind" json:"kind"`
	Phone       string         `db:"phone" json:"phone"`
	Status      string         `db:"status" json:"status"`
	CheckoutID  sql.NullString `db:"checkout_id" json:"checkout_id"`
	CreatedAt   int64          `db:"created_at" json:"created_at"`
	FinalizedAt sql.NullInt64  `db:"finalized_at" json:"finalized_at"`
}

// IsTerminal reports whether the intent reached a final status
func (i *Intent) IsTerminal() bool {
	return i.Status != IntentStatusQueued
}

// Intent kinds
const (
	IntentKindTopup    = "topup"
	IntentKindPurchase = "purchase"
)

// Intent statuses
const (
	IntentStatusQueued  = "QUEUED"
	IntentStatusSuccess = "success"
	IntentStatusFailed  = "failed"
)

// Purchase methods
const (
	PurchaseMethodBalance  = "balance"
	PurchaseMethodSTK      = "stk"
	PurchaseMethodSTKTopup = "stk_topup"
)

// ConversationStep is the input the bot expects next from an account
type ConversationStep string

const (
	StepIdle          ConversationStep = ""
	StepPurchasePhone ConversationStep = "purchase_phone"
	StepTopupAmount   ConversationStep = "topup_amount"
	StepTopupPhone    ConversationStep = "topup_phone"
)

// Conversation is the per-account dialogue state
type Conversation struct {
	Step   ConversationStep `json:"step"`
	ItemID string           `json:"item_id,omitempty"`
	Amount Money            `json:"amount,omitempty"`
}

// IsIdle reports whether no input is awaited
func (c Conversation) IsIdle() bool {
	return c.Step == StepIdle
}

// CallbackResponse is the body returned to the payment gateway
type CallbackResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}
