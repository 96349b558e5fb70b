package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/fees"
	"boxoffice/internal/fulfillment"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/internal/settlement"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/shared/middleware"
	"boxoffice/pkg/logger"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Seeder struct {
	db  *database.DB
	cfg *config.Config

	events      events.Service
	inventory   inventory.Service
	payments    payments.Service
	fulfillment fulfillment.Service
	settlement  settlement.Service
}

func main() {
	fmt.Println("🌱 Starting boxoffice database seeder...")

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder, err := NewSeeder(db, cfg)
	if err != nil {
		log.Fatalf("Failed to build seeder: %v", err)
	}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}

	fmt.Println("\n🌱 Seeding database...")
	organizationID, err := seeder.SeedAll(context.Background())
	if err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	fmt.Println("\n🔑 Development tokens (24h):")
	for _, role := range []string{middleware.RoleAdmin, middleware.RoleOrganizer, middleware.RoleService} {
		token, err := devToken(cfg.JWT.Secret, role, organizationID)
		if err != nil {
			log.Fatalf("Failed to sign %s token: %v", role, err)
		}
		fmt.Printf("  %-9s %s\n", role, token)
	}

	fmt.Println("\n🎉 Seeding completed!")
}

func NewSeeder(db *database.DB, cfg *config.Config) (*Seeder, error) {
	rates, err := fees.ParseRates(cfg.Fees.PixPercentage, cfg.Fees.CardPercentage)
	if err != nil {
		return nil, err
	}
	calculator := fees.NewCalculator(rates)
	log := logger.GetDefault()

	s := &Seeder{db: db, cfg: cfg}
	s.events = events.NewService(events.NewRepository(db.PostgreSQL), calculator, log)
	s.inventory = inventory.NewService(inventory.NewRepository(db.PostgreSQL), inventory.Options{Logger: log})
	s.payments = payments.NewService(payments.NewRepository(db.PostgreSQL), log)
	s.fulfillment = fulfillment.NewService(s.inventory, s.payments, s.events, fulfillment.Options{Logger: log})
	s.settlement = settlement.NewService(settlement.NewRepository(db.PostgreSQL), s.events, s.payments, calculator, settlement.Options{Logger: log})
	return s, nil
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"withdrawals",
		"tickets",
		"pricing_batches",
		"ticket_categories",
		"payment_transactions",
		"event_fee_settings",
		"events",
		"organizations",
	}

	tx := s.db.PostgreSQL.Begin()
	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return tx.Commit().Error
}

// SeedAll creates one organization with a published event, its categories,
// and a handful of fulfilled purchases. It returns the organization id.
func (s *Seeder) SeedAll(ctx context.Context) (uuid.UUID, error) {
	organization, err := s.settlement.CreateOrganization(ctx, settlement.CreateOrganizationRequest{
		Name: "Produtora Aurora",
		PixKeys: []settlement.PixKey{
			{Type: "email", Key: "financeiro@aurora.example"},
			{Type: "cnpj", Key: "12345678000199"},
		},
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed organization: %w", err)
	}
	fmt.Printf("  ✅ Organization: %s (%s)\n", organization.Name, organization.ID)

	event, err := s.events.CreateEvent(ctx, organization.ID, events.CreateEventRequest{
		Name:     "Festival de Inverno",
		StartsAt: time.Now().Add(30 * 24 * time.Hour),
		Status:   string(events.EventStatusPublished),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed event: %w", err)
	}
	fmt.Printf("  ✅ Event: %s (%s)\n", event.Name, event.ID)

	categories := []inventory.CreateCategoryRequest{
		{
			Name:          "Pista",
			TotalQuantity: 500,
			Price:         8000,
			Batches: []inventory.CreateBatchRequest{
				{BatchNumber: 1, Quantity: 200, Price: 6000},
				{BatchNumber: 2, Quantity: 300, Price: 8000},
			},
		},
		{Name: "Camarote", TotalQuantity: 80, Price: 25000},
	}
	var categoryIDs []uuid.UUID
	for _, req := range categories {
		category, err := s.inventory.CreateCategory(ctx, event.ID, req)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to seed category %s: %w", req.Name, err)
		}
		categoryIDs = append(categoryIDs, category.ID)
		fmt.Printf("  ✅ Category: %s x%d\n", category.Name, category.TotalQuantity)
	}

	purchases := []struct {
		method   fees.Method
		category uuid.UUID
		quantity int
		paidAgo  time.Duration
	}{
		{fees.MethodPix, categoryIDs[0], 2, time.Hour},
		{fees.MethodCard, categoryIDs[0], 1, 20 * 24 * time.Hour},
		{fees.MethodCard, categoryIDs[1], 2, 2 * 24 * time.Hour},
	}
	for i, p := range purchases {
		if err := s.purchase(ctx, event.ID, fmt.Sprintf("seed-tx-%d", i+1), p.method, p.category, p.quantity, p.paidAgo); err != nil {
			return uuid.Nil, err
		}
	}

	return organization.ID, nil
}

func (s *Seeder) purchase(ctx context.Context, eventID uuid.UUID, transactionID string, method fees.Method, categoryID uuid.UUID, quantity int, paidAgo time.Duration) error {
	category, err := s.inventory.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(payments.PaymentMetadata{
		TicketSelections: []payments.TicketSelection{{CategoryID: categoryID, Quantity: quantity}},
	})
	if err != nil {
		return err
	}

	paidAt := time.Now().Add(-paidAgo).UTC()
	result, err := s.fulfillment.HandleConfirmation(ctx, payments.Confirmation{
		TransactionID: transactionID,
		EventID:       eventID,
		UserID:        "seed-buyer",
		Amount:        category.CurrentPrice * int64(quantity),
		Status:        string(payments.StatusPaid),
		PaymentMethod: string(method),
		Metadata:      metadata,
		PaidAt:        &paidAt,
	})
	if err != nil {
		return fmt.Errorf("failed to seed purchase %s: %w", transactionID, err)
	}
	fmt.Printf("  ✅ Purchase %s: %d ticket(s) via %s\n", transactionID, len(result.TicketIDs), method)
	return nil
}

func devToken(secret, role string, organizationID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"type":    "access",
		"user_id": "seed-" + role,
		"role":    role,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	if role == middleware.RoleOrganizer {
		claims["organization_id"] = organizationID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
