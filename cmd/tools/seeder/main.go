package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/salon-pos/internal/auth"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	branchID := seedBranch(ctx, pool)
	log.Printf("Using branch: %s", branchID)

	seedStaff(ctx, pool, branchID)
	seedCatalog(ctx, pool, branchID)
	seedStock(ctx, pool, branchID)
	seedPromotions(ctx, pool, branchID)

	log.Println("Seeding completed successfully!")
}

func seedBranch(ctx context.Context, pool *pgxpool.Pool) string {
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO branches (id, name, address, phone, status)
		VALUES ($1, 'Main Branch', '123 Rizal Ave', '+63 912 000 0000', 'active')
		ON CONFLICT (name) DO UPDATE SET status = 'active'
		RETURNING id`, uuid.NewString()).Scan(&id)
	if err != nil {
		log.Fatalf("seed branch: %v", err)
	}
	return id
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, branchID string) {
	log.Println("Seeding staff...")
	staff := []struct {
		Email string
		Name  string
		Role  string
	}{
		{"admin@salon.local", "System Admin", "system-admin"},
		{"manager@salon.local", "Branch Manager", "branch-manager"},
		{"frontdesk@salon.local", "Front Desk", "receptionist"},
	}
	for _, s := range staff {
		hash, err := auth.HashPassword("changeme-" + s.Role)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO staff_users (id, email, display_name, role, branch_id, password_hash, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'active')
			ON CONFLICT (email) DO NOTHING`,
			uuid.NewString(), s.Email, s.Name, s.Role, branchID, hash)
		if err != nil {
			log.Fatalf("seed staff %s: %v", s.Email, err)
		}
	}
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, branchID string) {
	log.Println("Seeding catalog...")
	services := []struct {
		Name     string
		Category string
		Price    int64
		Duration int
	}{
		{"Haircut", "Hair", 30000, 45},
		{"Hair Color", "Hair", 150000, 120},
		{"Manicure", "Nails", 25000, 30},
		{"Pedicure", "Nails", 30000, 40},
		{"Full Body Massage", "Spa", 80000, 60},
	}
	for _, s := range services {
		_, err := pool.Exec(ctx, `
			INSERT INTO salon_services (id, branch_id, name, category, base_price, duration_minutes, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'active')
			ON CONFLICT (branch_id, name) DO NOTHING`,
			uuid.NewString(), branchID, s.Name, s.Category, s.Price, s.Duration)
		if err != nil {
			log.Fatalf("seed service %s: %v", s.Name, err)
		}
	}

	products := []struct {
		Name          string
		Price         int64
		UnitCost      int64
		CommissionBps int
	}{
		{"Argan Oil Shampoo", 25000, 15000, 500},
		{"Keratin Conditioner", 28000, 16000, 500},
		{"Nail Polish Set", 45000, 27000, 300},
		{"Hair Serum", 60000, 35000, 800},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, branch_id, name, price, unit_cost, commission_bps, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'active')
			ON CONFLICT (branch_id, name) DO NOTHING`,
			uuid.NewString(), branchID, p.Name, p.Price, p.UnitCost, p.CommissionBps)
		if err != nil {
			log.Fatalf("seed product %s: %v", p.Name, err)
		}
	}
}

func seedStock(ctx context.Context, pool *pgxpool.Pool, branchID string) {
	log.Println("Seeding stock batches...")
	rows, err := pool.Query(ctx, `SELECT id, name FROM products WHERE branch_id = $1`, branchID)
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	defer rows.Close()

	type product struct{ id, name string }
	var products []product
	for rows.Next() {
		var p product
		if err := rows.Scan(&p.id, &p.name); err != nil {
			log.Fatalf("scan product: %v", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("list products: %v", err)
	}

	for i, p := range products {
		for batch := 1; batch <= 2; batch++ {
			batchNumber := time.Now().Format("200601") + "-" + uuid.NewString()[:8]
			usage := "retail"
			if i == 0 && batch == 2 {
				usage = "salon-use"
			}
			_, err := pool.Exec(ctx, `
				INSERT INTO stock_batches
					(id, branch_id, product_id, batch_number, initial_qty, remaining_qty,
					 usage_type, status, received_date)
				VALUES ($1, $2, $3, $4, $5, $5, $6, 'active', now())
				ON CONFLICT (branch_id, batch_number) DO NOTHING`,
				uuid.NewString(), branchID, p.id, batchNumber, 10*batch, usage)
			if err != nil {
				log.Fatalf("seed batch for %s: %v", p.name, err)
			}
		}
	}
}

func seedPromotions(ctx context.Context, pool *pgxpool.Pool, branchID string) {
	log.Println("Seeding promotions...")
	now := time.Now()
	_, err := pool.Exec(ctx, `
		INSERT INTO promotions
			(id, code, title, kind, value, percent_bps, applies_to, min_spend,
			 usage_limit, per_client_limit, valid_from, valid_to, branch_id, status)
		VALUES
			($1, 'WELCOME10', '10% off for new clients', 'percent', 0, 1000, 'all', 0, 0, 1, $3, $4, '', 'active'),
			($2, 'SPA50', 'Fixed 500 off services', 'fixed', 50000, 0, 'services', 100000, 100, 0, $3, $4, $5, 'active')
		ON CONFLICT (code) DO NOTHING`,
		uuid.NewString(), uuid.NewString(), now.AddDate(0, -1, 0), now.AddDate(1, 0, 0), branchID)
	if err != nil {
		log.Fatalf("seed promotions: %v", err)
	}
}
