package webhooksig

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// Mailchimp provides no cryptographic webhook signature, so verification
// degrades to structural validation of the payload: it must carry a type tag
// and a data object. This is an accepted provider limitation, not a gap to
// paper over.

var mailchimpValidate = validator.New()

// MailchimpPayload is the minimal shape a Mailchimp webhook must have.
type MailchimpPayload struct {
	Type    string                 `json:"type" validate:"required"`
	FiredAt string                 `json:"fired_at"`
	Data    map[string]interface{} `json:"data" validate:"required"`
}

// ParseMailchimp validates the structural shape of a Mailchimp webhook body
// and returns the parsed payload.
func ParseMailchimp(payload []byte) (*MailchimpPayload, error) {
	var out MailchimpPayload
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	if err := mailchimpValidate.Struct(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMailchimp reports whether the body passes structural validation.
func VerifyMailchimp(payload []byte) bool {
	_, err := ParseMailchimp(payload)
	return err == nil
}
