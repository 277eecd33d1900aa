// Package gateway é o cliente HTTP do gateway de pagamento externo.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/matheusmosca/commerce-settlement/internal/config"
	"github.com/matheusmosca/commerce-settlement/internal/domain"
)

const (
	// CodeSuccess indica pagamento aceito
	CodeSuccess = 100
	// CodeAlreadyVerified indica que a mesma transação já foi verificada antes
	CodeAlreadyVerified = 101

	// StatusOK e StatusNOK são os valores do parâmetro Status no callback
	StatusOK  = "OK"
	StatusNOK = "NOK"
)

// Client implementa as chamadas de criação e verificação de pagamento
type Client struct {
	http       *resty.Client
	baseURL    string
	merchantID string
}

// NewClient cria uma nova instância de Client
func NewClient(cfg config.Gateway) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json").
			SetHeader("Content-Type", "application/json"),
		baseURL:    cfg.BaseURL,
		merchantID: cfg.MerchantID,
	}
}

// PaymentRequest é o pedido de criação de pagamento
type PaymentRequest struct {
	OrderID     string
	Amount      int64
	CallbackURL string
	Description string
}

// Payment é a resposta de criação: a referência (authority) e a URL para
// onde o comprador deve ser redirecionado
type Payment struct {
	Authority   string
	RedirectURL string
}

// Verification é o resultado da verificação de um pagamento
type Verification struct {
	Code  int
	RefID string
}

type createPayload struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type verifyPayload struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type responseData struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Authority string      `json:"authority"`
	RefID     json.Number `json:"ref_id"`
}

// envelope: o gateway devolve errors como [] em sucesso e como objeto em falha
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type gatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// decode devolve os dados, o erro explícito do gateway (se houver) ou um
// erro quando o corpo não pôde ser lido
func (e envelope) decode() (responseData, *gatewayError, error) {
	var data responseData
	if len(e.Errors) > 0 && e.Errors[0] == '{' {
		var gErr gatewayError
		if err := json.Unmarshal(e.Errors, &gErr); err != nil {
			return data, nil, fmt.Errorf("decode errors: %w", err)
		}
		if gErr.Code != 0 {
			return data, &gErr, nil
		}
	}
	if len(e.Data) > 0 && e.Data[0] == '{' {
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return data, nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return data, nil, nil
}

// classify separa rejeição explícita (código do gateway) de resposta sem
// código, que é tratada como indisponibilidade
func classify(op string, resp *resty.Response, out envelope) (responseData, *gatewayError, error) {
	if resp.StatusCode() >= 500 {
		return responseData{}, nil, fmt.Errorf("%s: status %d: %w", op, resp.StatusCode(), domain.ErrGatewayUnavailable)
	}

	data, gErr, err := out.decode()
	if err != nil {
		return data, nil, fmt.Errorf("%s: status %d: %v: %w", op, resp.StatusCode(), err, domain.ErrGatewayUnavailable)
	}
	if gErr != nil {
		return data, gErr, nil
	}
	if resp.StatusCode() >= 400 || data.Code == 0 {
		return data, nil, fmt.Errorf("%s: status %d without gateway code: %w", op, resp.StatusCode(), domain.ErrGatewayUnavailable)
	}
	return data, nil, nil
}

// CreatePayment registra o pagamento no gateway. Erros de transporte, 5xx e
// respostas sem código voltam como ErrGatewayUnavailable.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	var out envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createPayload{
			MerchantID:  c.merchantID,
			Amount:      req.Amount,
			CallbackURL: req.CallbackURL,
			Description: req.Description,
			Metadata:    map[string]string{"order_id": req.OrderID},
		}).
		SetResult(&out).
		SetError(&out).
		Post("/pg/v4/payment/request.json")
	if err != nil {
		return nil, fmt.Errorf("create payment: %v: %w", err, domain.ErrGatewayUnavailable)
	}

	data, gErr, err := classify("create payment", resp, out)
	if err != nil {
		return nil, err
	}
	if gErr != nil {
		return nil, fmt.Errorf("create payment rejected (code %d: %s): %w", gErr.Code, gErr.Message, domain.ErrGatewayVerificationFailed)
	}
	if data.Code != CodeSuccess || data.Authority == "" {
		return nil, fmt.Errorf("create payment rejected (code %d): %w", data.Code, domain.ErrGatewayVerificationFailed)
	}

	return &Payment{
		Authority:   data.Authority,
		RedirectURL: c.StartURL(data.Authority),
	}, nil
}

// StartURL monta a URL de pagamento de uma autorização já emitida
func (c *Client) StartURL(authority string) string {
	return c.baseURL + "/pg/StartPay/" + authority
}

// Verify confirma o pagamento com o valor esperado. Códigos 100 e 101 são
// sucesso; qualquer outro código é uma rejeição explícita
// (ErrGatewayVerificationFailed). Timeout, erro de transporte, 5xx e
// respostas sem código do gateway voltam como ErrGatewayUnavailable.
func (c *Client) Verify(ctx context.Context, authority string, amount int64) (*Verification, error) {
	var out envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(verifyPayload{
			MerchantID: c.merchantID,
			Amount:     amount,
			Authority:  authority,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/pg/v4/payment/verify.json")
	if err != nil {
		return nil, fmt.Errorf("verify payment: %v: %w", err, domain.ErrGatewayUnavailable)
	}

	data, gErr, err := classify("verify payment", resp, out)
	if err != nil {
		return nil, err
	}
	if gErr != nil {
		return &Verification{Code: gErr.Code}, fmt.Errorf("verify rejected (code %d: %s): %w", gErr.Code, gErr.Message, domain.ErrGatewayVerificationFailed)
	}
	if data.Code != CodeSuccess && data.Code != CodeAlreadyVerified {
		return &Verification{Code: data.Code}, fmt.Errorf("verify rejected (code %d): %w", data.Code, domain.ErrGatewayVerificationFailed)
	}

	return &Verification{Code: data.Code, RefID: data.RefID.String()}, nil
}

// ReasonCode converte o código do gateway em texto para o redirect do comprador
func ReasonCode(code int) string {
	if code == 0 {
		return ""
	}
	return "gateway_" + strconv.Itoa(code)
}
