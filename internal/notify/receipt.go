package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/salon-pos/internal/common"
	"github.com/noah-isme/salon-pos/internal/obs"
)

// Receipt is the data rendered into a receipt email.
type Receipt struct {
	BillID        string
	ReceiptNumber string
	BranchName    string
	ClientName    string
	ClientEmail   string
	Lines         []ReceiptLine
	Subtotal      int64
	Discount      int64
	Total         int64
	PaymentMethod string
	CurrencyCode  string
	CreatedAt     time.Time
}

// ReceiptLine is one item on the receipt.
type ReceiptLine struct {
	Name   string
	Qty    int
	Amount int64
}

// ReceiptStore loads receipt data for a finalized bill.
type ReceiptStore interface {
	Receipt(ctx context.Context, billID string) (Receipt, error)
}

type receiptView struct {
	BranchName    string
	ReceiptNumber string
	ClientName    string
	Lines         []receiptLineView
	Subtotal      string
	Discount      string
	Total         string
	PaymentMethod string
	Date          string
}

type receiptLineView struct {
	Name   string
	Qty    int
	Amount string
}

var receiptTmpl = template.Must(template.New("receipt").Parse(`<h2>{{.BranchName}}</h2>
<p>Receipt {{.ReceiptNumber}} for {{.ClientName}}</p>
<table>
{{range .Lines}}<tr><td>{{.Name}} x{{.Qty}}</td><td>{{.Amount}}</td></tr>
{{end}}</table>
<p>Subtotal: {{.Subtotal}}</p>
{{if .Discount}}<p>Discount: -{{.Discount}}</p>{{end}}
<p><strong>Total: {{.Total}}</strong></p>
<p>Paid via {{.PaymentMethod}} on {{.Date}}</p>`))

// ReceiptEmailHandler processes receipt email tasks from the worker.
type ReceiptEmailHandler struct {
	Store  ReceiptStore
	Sender common.EmailSender
	Logger *zerolog.Logger
}

// Handle renders and sends the receipt. Bills without a client email are
// acknowledged without sending so asynq does not retry them.
func (h ReceiptEmailHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ReceiptEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode receipt payload: %w", err)
	}
	receipt, err := h.Store.Receipt(ctx, payload.BillID)
	if err != nil {
		return fmt.Errorf("load receipt for bill %s: %w", payload.BillID, err)
	}
	if strings.TrimSpace(receipt.ClientEmail) == "" {
		if h.Logger != nil {
			h.Logger.Debug().Str("bill_id", payload.BillID).Msg("receipt email skipped, no client email")
		}
		return nil
	}

	html, err := RenderReceipt(receipt)
	if err != nil {
		return fmt.Errorf("render receipt %s: %w", receipt.ReceiptNumber, err)
	}
	subject := "Your receipt " + receipt.ReceiptNumber
	if err := h.Sender.Send(receipt.ClientEmail, subject, html); err != nil {
		if obs.ReceiptEmailTotal != nil {
			obs.ReceiptEmailTotal.WithLabelValues("failed").Inc()
		}
		return err
	}
	if obs.ReceiptEmailTotal != nil {
		obs.ReceiptEmailTotal.WithLabelValues("sent").Inc()
	}
	if h.Logger != nil {
		h.Logger.Info().
			Str("bill_id", payload.BillID).
			Str("receipt_number", receipt.ReceiptNumber).
			Msg("receipt email sent")
	}
	return nil
}

// RenderReceipt produces the HTML body for a receipt email.
func RenderReceipt(r Receipt) (string, error) {
	code := r.CurrencyCode
	if code == "" {
		code = "PHP"
	}
	money := func(minor int64) string {
		return fmt.Sprintf("%s %d.%02d", code, minor/100, minor%100)
	}
	view := receiptView{
		BranchName:    r.BranchName,
		ReceiptNumber: r.ReceiptNumber,
		ClientName:    r.ClientName,
		Subtotal:      money(r.Subtotal),
		Total:         money(r.Total),
		PaymentMethod: r.PaymentMethod,
		Date:          r.CreatedAt.Format("2 Jan 2006 15:04"),
	}
	if r.Discount > 0 {
		view.Discount = money(r.Discount)
	}
	for _, line := range r.Lines {
		view.Lines = append(view.Lines, receiptLineView{Name: line.Name, Qty: line.Qty, Amount: money(line.Amount)})
	}
	var sb strings.Builder
	if err := receiptTmpl.Execute(&sb, view); err != nil {
		return "", err
	}
	return sb.String(), nil
}
