package models

import "time"

// MailItem is one order-confirmation candidate discovered by a mailbox poll.
// It is immutable once produced; the same message yields a fresh MailItem on
// every poll until its label reaches a terminal state.
type MailItem struct {
	MessageID  string    `json:"message_id"`
	OrderID    string    `json:"order_id"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source"`
}

// Label is the processing outcome attached to the underlying message.
type Label string

const (
	LabelNone    Label = ""
	LabelPending Label = "PENDING"
	LabelDone    Label = "DONE"
	LabelFailed  Label = "FAILED"
)

// TerminalLabels excludes a message from future candidate queries.
var TerminalLabels = []Label{LabelDone, LabelFailed}

// PipelineLabels is every label the pipeline may write.
var PipelineLabels = []Label{LabelPending, LabelDone, LabelFailed}

func (l Label) IsTerminal() bool {
	return l == LabelDone || l == LabelFailed
}
