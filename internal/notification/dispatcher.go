package notification

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/model"
	"handoff-backend/internal/store"
)

// latencyBudget is how long one dispatch may take before it is logged as slow.
const latencyBudget = 60 * time.Second

// Options configures push delivery.
type Options struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             int
	TokenLifetime   time.Duration
	Concurrency     int
	DefaultEnabled  bool
	HTTPClient      webpush.HTTPClient
}

// Result reports what a dispatch did.
type Result struct {
	PushSent       bool   `json:"push_sent"`
	PushCount      int    `json:"push_count"`
	Removed        int64  `json:"removed"`
	NotificationID string `json:"notification_id"`
}

// Dispatcher notifies a handoff's author that it was acknowledged.
type Dispatcher struct {
	handoffs *store.HandoffStore
	subs     *store.SubscriptionStore
	records  *store.RecordStore
	sender   Sender
	opts     Options
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. A nil sender uses WebPushSender.
func NewDispatcher(handoffs *store.HandoffStore, subs *store.SubscriptionStore, records *store.RecordStore, sender Sender, opts Options) *Dispatcher {
	if sender == nil {
		sender = &WebPushSender{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.TTL <= 0 {
		opts.TTL = 3600
	}
	if opts.TokenLifetime <= 0 {
		opts.TokenLifetime = time.Hour
	}
	return &Dispatcher{handoffs: handoffs, subs: subs, records: records, sender: sender, opts: opts, now: time.Now}
}

type deliveryOutcome int

const (
	outcomeDelivered deliveryOutcome = iota
	outcomeStale
	outcomeFailed
)

// NotifyAcknowledgment pushes to the author's devices, prunes stale
// subscriptions and records the in-app notification. Push failures never
// fail the call; only malformed input or an unreadable acknowledgment does.
func (d *Dispatcher) NotifyAcknowledgment(ctx context.Context, ackID string) (*Result, error) {
	started := time.Now()
	defer func() {
		if elapsed := time.Since(started); elapsed > latencyBudget {
			log.Printf("Dispatch for acknowledgment %s took %s, over the %s budget", ackID, elapsed, latencyBudget)
		}
	}()

	if strings.TrimSpace(ackID) == "" {
		return nil, apperr.New(apperr.KindValidation, "acknowledgment id is required")
	}
	ack, err := d.records.Acknowledgment(ctx, ackID)
	if err != nil {
		return nil, err
	}
	h, err := d.handoffs.Get(ctx, ack.HandoffID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if d.pushEnabled(ctx, h.CreatorID) {
		d.push(ctx, h, ack, res)
	}

	n, _, err := d.records.SaveNotification(ctx, InApp(h, ack))
	if err != nil {
		return res, err
	}
	res.NotificationID = n.ID
	return res, nil
}

func (d *Dispatcher) pushEnabled(ctx context.Context, userID string) bool {
	pref, found, err := d.records.Preference(ctx, userID)
	if err != nil {
		log.Printf("Could not read push preference for %s, skipping push: %v", userID, err)
		return false
	}
	if !found {
		return d.opts.DefaultEnabled
	}
	return pref.HandoffPush
}

func (d *Dispatcher) push(ctx context.Context, h *model.Handoff, ack *model.Acknowledgment, res *Result) {
	subs, err := d.subs.ForUser(ctx, h.CreatorID)
	if err != nil {
		log.Printf("Error fetching subscriptions for %s: %v", h.CreatorID, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := BuildPayload(h, ack)
	if err != nil {
		log.Printf("Error building payload for acknowledgment %s: %v", ack.ID, err)
		return
	}

	log.Printf("Sending %d notifications for acknowledgment %s", len(subs), ack.ID)

	var (
		mu        sync.Mutex
		delivered []string
		stale     []string
		statuses  = make(map[string]int)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			outcome, status := d.send(gctx, sub, payload)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeDelivered:
				delivered = append(delivered, sub.ID)
			case outcomeStale:
				stale = append(stale, sub.ID)
				statuses[sub.ID] = status
			}
			return nil
		})
	}
	_ = g.Wait()

	res.PushCount = len(delivered)
	res.PushSent = len(delivered) > 0
	if err := d.subs.MarkPushed(ctx, delivered, d.now()); err != nil {
		log.Printf("Failed to record push time for acknowledgment %s: %v", ack.ID, err)
	}
	removed, err := d.subs.DeleteStale(ctx, stale, statuses)
	if err != nil {
		log.Printf("Failed to delete %d stale subscriptions: %v", len(stale), err)
	}
	res.Removed = removed
}

// send delivers one message and classifies the push service's answer.
func (d *Dispatcher) send(ctx context.Context, sub model.PushSubscription, payload []byte) (deliveryOutcome, int) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}
	options := &webpush.Options{
		Subscriber:      d.opts.Subject,
		VAPIDPublicKey:  d.opts.VAPIDPublicKey,
		VAPIDPrivateKey: d.opts.VAPIDPrivateKey,
		TTL:             d.opts.TTL,
		Urgency:         webpush.UrgencyNormal,
		VapidExpiration: d.now().Add(d.opts.TokenLifetime),
		HTTPClient:      d.opts.HTTPClient,
	}

	resp, err := d.sender.Send(ctx, payload, wpSub, options)
	if err != nil {
		log.Printf("Delivery failure to %s: %v", sub.Endpoint, err)
		return outcomeFailed, 0
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return outcomeDelivered, resp.StatusCode
	case resp.StatusCode == 404 || resp.StatusCode == 410:
		log.Printf("Subscription for endpoint %s is stale (%d). Deleting.", sub.Endpoint, resp.StatusCode)
		return outcomeStale, resp.StatusCode
	default:
		log.Printf("Delivery failure to %s: push service answered %d", sub.Endpoint, resp.StatusCode)
		return outcomeFailed, resp.StatusCode
	}
}
