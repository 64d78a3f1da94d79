// Package sampledb creates a small shop database to ask questions against.
package sampledb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/config"
)

var sqliteTables = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT,
    price REAL NOT NULL,
    stock INTEGER DEFAULT 0,
    category TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS orders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    total_amount REAL NOT NULL,
    status TEXT DEFAULT 'pending',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users(id)
)`,
	`CREATE TABLE IF NOT EXISTS order_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id INTEGER NOT NULL,
    product_id INTEGER NOT NULL,
    quantity INTEGER NOT NULL,
    unit_price REAL NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(id),
    FOREIGN KEY (product_id) REFERENCES products(id)
)`,
}

var postgresTables = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS products (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    price DOUBLE PRECISION NOT NULL,
    stock INTEGER DEFAULT 0,
    category TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS orders (
    id SERIAL PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(id),
    total_amount DOUBLE PRECISION NOT NULL,
    status TEXT DEFAULT 'pending',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS order_items (
    id SERIAL PRIMARY KEY,
    order_id INTEGER NOT NULL REFERENCES orders(id),
    product_id INTEGER NOT NULL REFERENCES products(id),
    quantity INTEGER NOT NULL,
    unit_price DOUBLE PRECISION NOT NULL
)`,
}

// Tables are the table names in creation order.
var Tables = []string{"users", "products", "orders", "order_items"}

// Questions can be answered from the sample data.
var Questions = []string{
	"How many users are there?",
	"What is the total revenue?",
	"Show me all products in Electronics category",
	"Which user has the most orders?",
	"What are the top 5 most expensive products?",
	"How many orders are pending?",
	"What is the average order amount?",
}

// Schemas returns the CREATE TABLE statements for driver.
func Schemas(driver string) []string {
	if driver == config.DriverPostgres {
		return postgresTables
	}
	return sqliteTables
}

type user struct {
	Name  string `db:"name"`
	Email string `db:"email"`
}

type product struct {
	Name        string  `db:"name"`
	Description string  `db:"description"`
	Price       float64 `db:"price"`
	Stock       int     `db:"stock"`
	Category    string  `db:"category"`
}

type order struct {
	UserID      int64   `db:"user_id"`
	TotalAmount float64 `db:"total_amount"`
	Status      string  `db:"status"`
}

type orderItem struct {
	OrderID   int64   `db:"order_id"`
	ProductID int64   `db:"product_id"`
	Quantity  int     `db:"quantity"`
	UnitPrice float64 `db:"unit_price"`
}

var users = []user{
	{"Alice Johnson", "alice@example.com"},
	{"Bob Smith", "bob@example.com"},
	{"Charlie Brown", "charlie@example.com"},
	{"Diana Ross", "diana@example.com"},
	{"Edward Chen", "edward@example.com"},
	{"Fiona Williams", "fiona@example.com"},
	{"George Miller", "george@example.com"},
	{"Helen Davis", "helen@example.com"},
	{"Ivan Petrov", "ivan@example.com"},
	{"Julia Garcia", "julia@example.com"},
}

var products = []product{
	{"Laptop", "High-performance laptop with 16GB RAM", 999.99, 50, "Electronics"},
	{"Smartphone", "Latest smartphone with 128GB storage", 699.99, 100, "Electronics"},
	{"Headphones", "Wireless noise-canceling headphones", 199.99, 200, "Electronics"},
	{"Coffee Maker", "Automatic drip coffee maker", 79.99, 75, "Home & Kitchen"},
	{"Desk Chair", "Ergonomic office chair", 299.99, 30, "Furniture"},
	{"Running Shoes", "Lightweight running shoes", 129.99, 150, "Sports"},
	{"Backpack", "Water-resistant travel backpack", 59.99, 200, "Accessories"},
	{"Watch", "Smart fitness watch", 249.99, 80, "Electronics"},
	{"Keyboard", "Mechanical gaming keyboard", 149.99, 120, "Electronics"},
	{"Mouse", "Wireless ergonomic mouse", 49.99, 180, "Electronics"},
	{"Monitor", "27-inch 4K display", 449.99, 40, "Electronics"},
	{"Tablet", "10-inch tablet with stylus", 399.99, 60, "Electronics"},
	{"Camera", "Digital mirrorless camera", 899.99, 25, "Electronics"},
	{"Blender", "High-speed blender", 89.99, 90, "Home & Kitchen"},
	{"Yoga Mat", "Non-slip exercise mat", 29.99, 250, "Sports"},
}

var orders = []order{
	{1, 1199.98, "completed"},
	{2, 699.99, "completed"},
	{3, 329.98, "shipped"},
	{1, 249.99, "completed"},
	{4, 1349.98, "processing"},
	{5, 179.98, "completed"},
	{6, 999.99, "shipped"},
	{7, 499.98, "pending"},
	{8, 89.99, "completed"},
	{9, 1299.98, "completed"},
	{10, 279.98, "processing"},
	{2, 449.99, "shipped"},
	{3, 129.99, "completed"},
	{4, 59.99, "completed"},
	{5, 849.98, "pending"},
}

var orderItems = []orderItem{
	{1, 1, 1, 999.99},
	{1, 3, 1, 199.99},
	{2, 2, 1, 699.99},
	{3, 6, 1, 129.99},
	{3, 3, 1, 199.99},
	{4, 8, 1, 249.99},
	{5, 1, 1, 999.99},
	{5, 9, 1, 149.99},
	{5, 10, 4, 49.99},
	{6, 6, 1, 129.99},
	{6, 10, 1, 49.99},
	{7, 1, 1, 999.99},
	{8, 11, 1, 449.99},
	{8, 10, 1, 49.99},
	{9, 14, 1, 89.99},
	{10, 13, 1, 899.99},
	{10, 12, 1, 399.99},
	{11, 8, 1, 249.99},
	{11, 15, 1, 29.99},
	{12, 11, 1, 449.99},
	{13, 6, 1, 129.99},
	{14, 7, 1, 59.99},
	{15, 2, 1, 699.99},
	{15, 9, 1, 149.99},
}

// Setup creates the tables and inserts the sample rows unless users already has data.
func Setup(ctx context.Context, db *sqlx.DB, driver string) error {
	for i, stmt := range Schemas(driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", Tables[i], err)
		}
		log.Debug().Str("table", Tables[i]).Msg("Created table")
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		log.Info().Msg("Sample data already exists, skipping insert")
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserts := []struct {
		table string
		query string
		rows  any
		n     int
	}{
		{"users", "INSERT INTO users (name, email) VALUES (:name, :email)", users, len(users)},
		{"products", "INSERT INTO products (name, description, price, stock, category) VALUES (:name, :description, :price, :stock, :category)", products, len(products)},
		{"orders", "INSERT INTO orders (user_id, total_amount, status) VALUES (:user_id, :total_amount, :status)", orders, len(orders)},
		{"order_items", "INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES (:order_id, :product_id, :quantity, :unit_price)", orderItems, len(orderItems)},
	}
	for _, in := range inserts {
		if _, err := tx.NamedExecContext(ctx, in.query, in.rows); err != nil {
			return fmt.Errorf("failed to insert %s: %w", in.table, err)
		}
		log.Info().Str("table", in.table).Int("rows", in.n).Msg("Inserted sample rows")
	}
	return tx.Commit()
}

type TableCount struct {
	Table string
	Rows  int
}

// Summary counts the rows of every sample table.
func Summary(ctx context.Context, db *sqlx.DB) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(Tables))
	for _, table := range Tables {
		var n int
		if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
	}
	return counts, nil
}
