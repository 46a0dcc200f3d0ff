// Package metrics defines and registers all custom Prometheus metrics for the
// lending API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lending"

// ── Token metrics ─────────────────────────────────────────────────────────────

// TokensIssuedTotal counts token issuance outcomes.
// Label:
//   - result: "new" (fresh token stored) or "reused" (existing token still inside the reuse window)
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of bearer tokens handed out, by result.",
	},
	[]string{"result"},
)

// TokensRevokedTotal counts revocations.
// Label:
//   - scope: "single" or "all"
var TokensRevokedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_revoked_total",
		Help:      "Total number of bearer tokens revoked.",
	},
	[]string{"scope"},
)

// TokenValidationsTotal counts bearer-token lookups.
// Label:
//   - result: "valid" or "invalid"
var TokenValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_validations_total",
		Help:      "Total number of bearer-token validations, by result.",
	},
	[]string{"result"},
)

// TokenCollisionsTotal counts generated tokens discarded because they were already stored.
var TokenCollisionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_collisions_total",
		Help:      "Total number of generated tokens that collided with a stored one.",
	},
)

// ── Borrowing metrics ─────────────────────────────────────────────────────────

// BorrowingsCreatedTotal counts persisted borrowings.
var BorrowingsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "borrowings_created_total",
		Help:      "Total number of borrowings created.",
	},
)

// BorrowRejectionsTotal counts borrow requests refused by validation.
// Label:
//   - reason: error kind (e.g. "invalid_quantity", "invalid_date_range", "item_not_found")
var BorrowRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "borrow_rejections_total",
		Help:      "Total number of borrow requests rejected, by reason.",
	},
	[]string{"reason"},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationsTotal counts notification outcomes.
// Label:
//   - result: "delivered", "failed" (retries exhausted) or "dropped" (queue full)
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of notifications, by delivery result.",
	},
	[]string{"result"},
)

// NotificationQueueDepth tracks notifications waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var NotificationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_depth",
		Help:      "Current number of notifications pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
