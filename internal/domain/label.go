package domain

// LabelType is the BIP-329 reference kind.
type LabelType string

const (
	LabelTx     LabelType = "tx"
	LabelAddr   LabelType = "addr"
	LabelInput  LabelType = "input"
	LabelOutput LabelType = "output"
)

// Label is one BIP-329 wallet label.
type Label struct {
	Type      LabelType `json:"type"`
	Ref       string    `json:"ref"`
	Label     string    `json:"label"`
	Spendable *bool     `json:"spendable,omitempty"`
}
