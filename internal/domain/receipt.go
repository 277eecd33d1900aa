package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReceiptStatus: PENDING -> {APPROVED, REJECTED}. REJECTED não é terminal,
// o comprador pode reenviar e voltar para PENDING.
type ReceiptStatus string

const (
	ReceiptStatusPending  ReceiptStatus = "PENDING"
	ReceiptStatusApproved ReceiptStatus = "APPROVED"
	ReceiptStatusRejected ReceiptStatus = "REJECTED"
)

type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "APPROVE"
	ReviewActionReject  ReviewAction = "REJECT"
)

// PaymentReceipt é 1:1 com um pedido MANUAL_TRANSFER. Um novo envio
// substitui o anterior; não há histórico de comprovantes rejeitados.
type PaymentReceipt struct {
	ID            string        `json:"id" db:"id"`
	OrderID       string        `json:"order_id" db:"order_id"`
	ImageURL      string        `json:"image_url" db:"image_url"`
	ImagePublicID string        `json:"image_public_id" db:"image_public_id"`
	BuyerNote     string        `json:"buyer_note" db:"buyer_note"`
	StaffNote     string        `json:"staff_note" db:"staff_note"`
	Status        ReceiptStatus `json:"status" db:"status"`
	ReviewedBy    *string       `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt    *time.Time    `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// NewPaymentReceipt cria uma nova instância de PaymentReceipt sempre em PENDING
func NewPaymentReceipt(orderID, imageURL, imagePublicID, note string) *PaymentReceipt {
	now := time.Now().UTC()
	return &PaymentReceipt{
		ID:            uuid.New().String(),
		OrderID:       orderID,
		ImageURL:      imageURL,
		ImagePublicID: imagePublicID,
		BuyerNote:     note,
		Status:        ReceiptStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanResubmit é verdadeiro enquanto o comprovante não foi aprovado
func (r *PaymentReceipt) CanResubmit() bool {
	return r.Status == ReceiptStatusPending || r.Status == ReceiptStatusRejected
}
