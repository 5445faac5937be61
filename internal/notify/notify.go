package notify

import (
	"fmt"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/guonaihong/gout"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/freshretail/freshpos/config"
	"github.com/freshretail/freshpos/internal/domain"
)

const (
	TopicLowStock = "inventory.low_stock"
	TopicExpiring = "inventory.expiring"
)

// LowStockEvent fires after a committed sale leaves a product's availability
// at or below the configured threshold.
type LowStockEvent struct {
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name"`
	Available int       `json:"available"`
	At        time.Time `json:"at"`
}

// ExpiringLotEvent fires for stocked lots inside the expiry warning window.
type ExpiringLotEvent struct {
	ProductID  int64     `json:"product_id"`
	Name       string    `json:"name"`
	LotID      int64     `json:"lot_id"`
	Remaining  int       `json:"remaining"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// Dispatcher fans inventory events out to the configured sinks. Delivery is
// asynchronous and best effort; a failing sink is logged and never surfaces
// to the sale path.
type Dispatcher struct {
	bus EventBus.Bus
	cfg config.NotifyConfig
}

func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{bus: EventBus.New(), cfg: cfg}

	_ = d.bus.SubscribeAsync(TopicLowStock, d.logLowStock, false)
	_ = d.bus.SubscribeAsync(TopicExpiring, d.logExpiring, false)

	if cfg.WebhookURL != "" {
		_ = d.bus.SubscribeAsync(TopicLowStock, d.webhookLowStock, false)
		_ = d.bus.SubscribeAsync(TopicExpiring, d.webhookExpiring, false)
	}
	if cfg.SmtpHost != "" && cfg.MailTo != "" {
		_ = d.bus.SubscribeAsync(TopicLowStock, d.mailLowStock, false)
	}
	return d
}

// LowStock implements the sale engine's notifier hook.
func (d *Dispatcher) LowStock(product domain.Product, available int) {
	d.bus.Publish(TopicLowStock, LowStockEvent{
		ProductID: product.ID,
		Name:      product.Name,
		Available: available,
		At:        time.Now(),
	})
}

func (d *Dispatcher) ExpiringLot(product domain.Product, lot domain.InventoryLot) {
	d.bus.Publish(TopicExpiring, ExpiringLotEvent{
		ProductID:  product.ID,
		Name:       product.Name,
		LotID:      lot.ID,
		Remaining:  lot.RemainingQuantity,
		ExpiryDate: lot.ExpiryDate,
	})
}

// Close drains in-flight deliveries.
func (d *Dispatcher) Close() {
	d.bus.WaitAsync()
}

func (d *Dispatcher) logLowStock(e LowStockEvent) {
	zap.L().Warn("low stock",
		zap.Int64("product_id", e.ProductID),
		zap.String("name", e.Name),
		zap.Int("available", e.Available))
}

func (d *Dispatcher) logExpiring(e ExpiringLotEvent) {
	zap.L().Warn("lot expiring soon",
		zap.Int64("product_id", e.ProductID),
		zap.String("name", e.Name),
		zap.Int64("lot_id", e.LotID),
		zap.Int("remaining", e.Remaining),
		zap.Time("expiry_date", e.ExpiryDate))
}

func (d *Dispatcher) webhookLowStock(e LowStockEvent) {
	d.postWebhook(TopicLowStock, e)
}

func (d *Dispatcher) webhookExpiring(e ExpiringLotEvent) {
	d.postWebhook(TopicExpiring, e)
}

func (d *Dispatcher) postWebhook(topic string, payload interface{}) {
	err := gout.POST(d.cfg.WebhookURL).
		SetTimeout(5 * time.Second).
		SetJSON(gout.H{"topic": topic, "event": payload}).
		Do()
	if err != nil {
		zap.L().Warn("webhook notification failed",
			zap.String("topic", topic), zap.Error(err))
	}
}

func (d *Dispatcher) mailLowStock(e LowStockEvent) {
	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.MailFrom)
	m.SetHeader("To", d.cfg.MailTo)
	m.SetHeader("Subject", fmt.Sprintf("Low stock: %s", e.Name))
	m.SetBody("text/plain", fmt.Sprintf(
		"Product %q (id %d) is down to %d units as of %s.",
		e.Name, e.ProductID, e.Available, e.At.Format(time.RFC3339)))

	dialer := gomail.NewDialer(d.cfg.SmtpHost, d.cfg.SmtpPort, d.cfg.SmtpUser, d.cfg.SmtpPasswd)
	if err := dialer.DialAndSend(m); err != nil {
		zap.L().Warn("mail notification failed", zap.Error(err))
	}
}
