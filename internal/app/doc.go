// Package app provides the application composition layer for the presale
// control plane.
//
// # Architecture Role
//
// The app package sits above the domain services and is responsible for
// composing them into a running application. It is NOT a business logic
// layer - business logic belongs in internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Main application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── campaign/       # Campaigns, settings, registrations, access entries
//	│   ├── event/          # Audit trail events
//	│   └── treasury/       # Withdrawal records
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (CampaignStore, EventStore, etc.)
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic
//	│   ├── campaign/       # Campaign lifecycle, registration, treasury ops
//	│   └── treasury/       # Payout transferors and settlement polling
//	├── events/             # Durable recording plus live fan-out (bus, redis)
//	├── httpapi/            # REST + websocket surface, auth, rate limiting
//	├── metrics/            # Prometheus collectors and HTTP instrumentation
//	└── system/             # Service lifecycle management
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing the campaign service with its stores and event recorder
//   - Selecting the payout transferor and principal validator from config
//   - Running background workers (settlement poller, phase announcer)
//   - Exposing the HTTP API for external access
//
// # Dependency Direction
//
//	cmd/presaled/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      ├──► internal/app/storage/  (persistence)
//	      └──► internal/app/events/   (event fan-out)
package app
