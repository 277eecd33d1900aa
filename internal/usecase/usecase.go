// Package usecase contém a lógica de negócio do pipeline: carrinho,
// criação de pedido, liquidação (gateway e comprovante manual) e ledger de
// estoque.
package usecase

import (
	"sort"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/events"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
	"github.com/matheusmosca/commerce-settlement/internal/telemetry"
)

// Repositories agrupa as dependências de persistência dos use cases
type Repositories struct {
	Tx        repository.TxManager
	Products  repository.ProductRepository
	Coupons   repository.CouponRepository
	Shipping  repository.ShippingRepository
	Addresses repository.AddressRepository
	Carts     repository.CartRepository
	Orders    repository.OrderRepository
	Receipts  repository.ReceiptRepository
	Ledger    repository.LedgerRepository
}

// Observability agrupa métricas e publicação de eventos
type Observability struct {
	Metrics   *telemetry.Metrics
	Publisher events.Publisher
}

func (o Observability) withDefaults() Observability {
	if o.Metrics == nil {
		o.Metrics = telemetry.MustMetrics()
	}
	if o.Publisher == nil {
		o.Publisher = events.NopPublisher{}
	}
	return o
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// sortLinesByProduct devolve uma cópia ordenada por produto, a ordem usada
// em toda escrita multi-linha para evitar deadlock entre transações
func sortLinesByProduct(lines []domain.CartLine) []domain.CartLine {
	out := append([]domain.CartLine(nil), lines...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
