// Package knowledgebase seeds an empty training corpus with the sample database schema
// and a few worked examples.
package knowledgebase

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/sampledb"
	"github.com/doubletabai/askdb/pkg/training"
)

type Example struct {
	Question string
	SQL      string
}

var Examples = []Example{
	{"How many products are there?", "SELECT COUNT(*) FROM products;"},
	{"List the names and emails of all users", "SELECT name, email FROM users;"},
	{"What is the total amount of completed orders?", "SELECT SUM(total_amount) FROM orders WHERE status = 'completed';"},
	{"Which products are in the Sports category?", "SELECT name, price FROM products WHERE category = 'Sports';"},
	{
		"How many units were sold for each product?",
		"SELECT p.name, SUM(oi.quantity) AS units_sold FROM order_items oi JOIN products p ON p.id = oi.product_id GROUP BY p.name ORDER BY units_sold DESC;",
	},
	{
		"Show the number of orders per user",
		"SELECT u.name, COUNT(o.id) AS order_count FROM users u LEFT JOIN orders o ON o.user_id = u.id GROUP BY u.id, u.name ORDER BY order_count DESC;",
	},
}

type Trainer interface {
	TrainSchema(ctx context.Context, text string) (int64, error)
	TrainPair(ctx context.Context, question, sqlText string) (int64, error)
	ListTraining(ctx context.Context) ([]training.View, error)
}

// Populate trains the sample schema for driver and Examples, unless the corpus already
// holds items. It returns the number of items added.
func Populate(ctx context.Context, t Trainer, driver string) (int, error) {
	existing, err := t.ListTraining(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		log.Debug().Int("items", len(existing)).Msg("Training corpus not empty, skipping knowledge seeding")
		return 0, nil
	}

	added := 0
	for _, ddl := range sampledb.Schemas(driver) {
		if _, err := t.TrainSchema(ctx, ddl); err != nil {
			return added, err
		}
		added++
	}
	for _, ex := range Examples {
		if _, err := t.TrainPair(ctx, ex.Question, ex.SQL); err != nil {
			return added, err
		}
		added++
	}
	log.Info().Int("items", added).Msg("Seeded training corpus")
	return added, nil
}
