package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const outboxKey = "notifications:outbox"

const (
	kindApproved = "modification_approved"
	kindRejected = "modification_rejected"
)

type intent struct {
	Kind    string `json:"kind"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Reason  string `json:"reason,omitempty"`
	POIName string `json:"poiName,omitempty"`
}

// Outbox decouples moderation decisions from email delivery: intents are
// pushed to a redis list and drained by a worker goroutine. Without redis it
// degrades to inline best-effort sends. Either way a failed delivery is only
// logged; the decision it reports is already durable.
type Outbox struct {
	redis  *redis.Client
	mailer *Mailer
}

func NewOutbox(redisClient *redis.Client, mailer *Mailer) *Outbox {
	o := &Outbox{redis: redisClient, mailer: mailer}
	if redisClient != nil {
		go o.run()
	}
	return o
}

func (o *Outbox) ModificationApproved(ctx context.Context, email, name, modType, poiName string) {
	o.enqueue(ctx, intent{Kind: kindApproved, Email: email, Name: name, Type: modType, POIName: poiName})
}

func (o *Outbox) ModificationRejected(ctx context.Context, email, name, modType, reason, poiName string) {
	o.enqueue(ctx, intent{Kind: kindRejected, Email: email, Name: name, Type: modType, Reason: reason, POIName: poiName})
}

func (o *Outbox) enqueue(ctx context.Context, in intent) {
	if o.redis == nil {
		o.deliver(ctx, in)
		return
	}

	payload, err := json.Marshal(in)
	if err != nil {
		log.Printf("outbox: marshal intent: %v", err)
		return
	}
	if err := o.redis.LPush(ctx, outboxKey, payload).Err(); err != nil {
		log.Printf("outbox: redis push failed, sending inline: %v", err)
		o.deliver(ctx, in)
	}
}

func (o *Outbox) run() {
	for {
		o.processOne(context.Background())
	}
}

// processOne blocks up to a second for the next intent and delivers it.
func (o *Outbox) processOne(ctx context.Context) bool {
	result, err := o.redis.BRPop(ctx, time.Second, outboxKey).Result()
	if err != nil {
		return false
	}
	if len(result) != 2 {
		return false
	}

	var in intent
	if err := json.Unmarshal([]byte(result[1]), &in); err != nil {
		log.Printf("outbox: bad intent payload: %v", err)
		return false
	}
	o.deliver(ctx, in)
	return true
}

func (o *Outbox) deliver(ctx context.Context, in intent) {
	var ok bool
	switch in.Kind {
	case kindApproved:
		ok = o.mailer.SendModificationApprovedEmail(ctx, in.Email, in.Name, in.Type, in.POIName)
	case kindRejected:
		ok = o.mailer.SendModificationRejectedEmail(ctx, in.Email, in.Name, in.Type, in.Reason, in.POIName)
	default:
		log.Printf("outbox: unknown intent kind %q", in.Kind)
		return
	}
	if !ok {
		log.Printf("outbox: delivery failed for %s to %s", in.Kind, in.Email)
	}
}
