package ports

import "context"

// OutboundPayload is an already-built, already-validated wire payload
// ready to POST to the provider's send endpoint.
type OutboundPayload struct {
	Body []byte
}

// ProviderErrorClass is the dispatcher's retry-classification taxonomy
// for a failed send (C8).
type ProviderErrorClass string

const (
	ProviderErrorRetryable ProviderErrorClass = "RETRYABLE"
	ProviderErrorPermanent ProviderErrorClass = "PERMANENT"
)

// ProviderError is returned by WhatsAppSender.Send on a non-2xx response.
type ProviderError struct {
	Class   ProviderErrorClass
	Code    int
	Type    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// WhatsAppSender posts a built payload to the provider's message send
// API (C8). The recipient is embedded in payload by the Payload Builder;
// this interface only knows how to transport bytes and classify the
// response.
type WhatsAppSender interface {
	Send(ctx context.Context, payload OutboundPayload) (providerMessageID string, err error)
}
