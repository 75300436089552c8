package controllers

import (
	"context"
	"encoding/json"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/clubops/supporter360/internal/pkg/env"
	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/metrics/counter"
	"github.com/clubops/supporter360/internal/pkg/rawstore"
	"github.com/clubops/supporter360/internal/pkg/webhooksig"
)

// Enqueuer is the queue surface the receivers need.
type Enqueuer interface {
	Enqueue(jobType eventqueue.JobType, payload eventqueue.WebhookJobPayload) (*eventqueue.Job, error)
}

// WebhookController accepts provider webhooks: verify the signature, persist
// the raw body, enqueue for async processing, acknowledge 202. The raw write
// always completes before the enqueue so processors can dereference the key.
type WebhookController struct {
	store rawstore.Store
	queue Enqueuer
	now   func() time.Time
}

// NewWebhookController creates a webhook controller over a raw payload store
// and a job queue.
func NewWebhookController(store rawstore.Store, queue Enqueuer) *WebhookController {
	return &WebhookController{
		store: store,
		queue: queue,
		now:   time.Now,
	}
}

// HandleShopify receives Shopify webhooks. The topic comes from the
// X-Shopify-Topic header and is carried alongside the payload since Shopify
// does not envelope its bodies.
func (wc *WebhookController) HandleShopify(c *fiber.Ctx) error {
	body := c.Body()
	secret := env.GetEnv("SHOPIFY_WEBHOOK_SECRET", "")
	if !webhooksig.VerifyShopify(body, c.Get(webhooksig.ShopifyHeader), secret) {
		log.Warn("[Webhook] Shopify signature verification failed")
		rejected("shopify")
		return unauthorized(c)
	}

	topic := c.Get("X-Shopify-Topic")
	if topic == "" {
		return badRequest(c, "Missing X-Shopify-Topic header")
	}
	if !json.Valid(body) {
		return badRequest(c, "Malformed JSON body")
	}

	event, err := json.Marshal(fiber.Map{"topic": topic, "payload": json.RawMessage(body)})
	if err != nil {
		return internalError(c)
	}
	return wc.accept(c, "shopify", eventqueue.JobTypeShopifyWebhook, body, [][]byte{event})
}

// HandleStripe receives Stripe webhooks.
func (wc *WebhookController) HandleStripe(c *fiber.Ctx) error {
	body := c.Body()
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	if !webhooksig.VerifyStripe(body, c.Get(webhooksig.StripeHeader), secret, wc.now()) {
		log.Warn("[Webhook] Stripe signature verification failed")
		rejected("stripe")
		return unauthorized(c)
	}
	if !json.Valid(body) {
		return badRequest(c, "Malformed JSON body")
	}
	return wc.accept(c, "stripe", eventqueue.JobTypeStripeWebhook, body, [][]byte{body})
}

// HandleGoCardless receives GoCardless webhooks. The body batches sub-events
// in events[]; each is enqueued as its own job.
func (wc *WebhookController) HandleGoCardless(c *fiber.Ctx) error {
	body := c.Body()
	secret := env.GetEnv("GOCARDLESS_WEBHOOK_SECRET", "")
	if !webhooksig.VerifyGoCardless(body, c.Get(webhooksig.GoCardlessHeader), secret) {
		log.Warn("[Webhook] GoCardless signature verification failed")
		rejected("gocardless")
		return unauthorized(c)
	}

	var batch struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &batch); err != nil {
		return badRequest(c, "Malformed JSON body")
	}
	if len(batch.Events) == 0 {
		return badRequest(c, "No events in payload")
	}

	events := make([][]byte, 0, len(batch.Events))
	for _, e := range batch.Events {
		events = append(events, []byte(e))
	}
	return wc.accept(c, "gocardless", eventqueue.JobTypeGoCardlessWebhook, body, events)
}

// HandleMailchimp receives Mailchimp webhooks. The provider offers no
// signature, so verification is structural only; bodies arrive either as JSON
// or form-urlencoded.
func (wc *WebhookController) HandleMailchimp(c *fiber.Ctx) error {
	body := c.Body()
	if mt, _, _ := mime.ParseMediaType(c.Get(fiber.HeaderContentType)); mt == fiber.MIMEApplicationForm {
		converted, err := mailchimpFormToJSON(body)
		if err != nil {
			return badRequest(c, "Malformed form body")
		}
		body = converted
	}

	if _, err := webhooksig.ParseMailchimp(body); err != nil {
		rejected("mailchimp")
		return badRequest(c, "Payload failed structural validation")
	}
	return wc.accept(c, "mailchimp", eventqueue.JobTypeMailchimpWebhook, body, [][]byte{body})
}

// accept persists the raw body and enqueues one job per event.
func (wc *WebhookController) accept(c *fiber.Ctx, provider string, jobType eventqueue.JobType, rawBody []byte, events [][]byte) error {
	correlationID := uuid.New().String()
	receivedAt := wc.now().UTC()
	key := rawstore.ObjectKey(provider, correlationID, receivedAt)

	envelope := rawstore.Envelope{
		Payload:    rawBody,
		ReceivedAt: receivedAt,
		Headers:    requestHeaders(c),
	}
	if err := wc.store.Put(context.Background(), key, envelope); err != nil {
		log.Errorf("[Webhook] Failed to store raw %s payload %s: %v", provider, correlationID, err)
		return internalError(c)
	}

	for _, event := range events {
		if _, err := wc.queue.Enqueue(jobType, eventqueue.WebhookJobPayload{
			Event:         event,
			S3Key:         key,
			CorrelationID: correlationID,
		}); err != nil {
			log.Errorf("[Webhook] Failed to enqueue %s job %s: %v", provider, correlationID, err)
			return internalError(c)
		}
	}

	if err := counter.AddReceived(provider); err != nil {
		log.Warnf("[Webhook] Failed to count received %s webhook: %v", provider, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"received":  true,
		"payloadId": correlationID,
	})
}

// rejected counts a rejected delivery. Counters are best effort.
func rejected(provider string) {
	if err := counter.AddRejected(provider); err != nil {
		log.Warnf("[Webhook] Failed to count rejected %s webhook: %v", provider, err)
	}
}

// mailchimpFormToJSON converts Mailchimp's form-urlencoded webhook encoding
// ("type=subscribe&data[email]=...") into the equivalent JSON document.
func mailchimpFormToJSON(body []byte) ([]byte, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{})
	data := make(map[string]interface{})
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		val := vals[0]
		path, ok := formDataPath(key)
		switch {
		case !ok:
			out[key] = val
		case len(path) == 1:
			data[path[0]] = val
		default:
			nested, _ := data[path[0]].(map[string]interface{})
			if nested == nil {
				nested = make(map[string]interface{})
				data[path[0]] = nested
			}
			nested[path[1]] = val
		}
	}
	if len(data) > 0 {
		out["data"] = data
	}
	return json.Marshal(out)
}

// formDataPath splits "data[merges][FNAME]" into ["merges", "FNAME"]. Keys
// not under data[...] report ok=false.
func formDataPath(key string) ([]string, bool) {
	if len(key) < 6 || key[:5] != "data[" || key[len(key)-1] != ']' {
		return nil, false
	}
	return strings.Split(key[5:len(key)-1], "]["), true
}

func requestHeaders(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	for key, vals := range c.GetReqHeaders() {
		if len(vals) > 0 {
			headers[key] = vals[0]
		}
	}
	return headers
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or missing signature"})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Processing failed"})
}
