package gormsource

import (
	"context"
	"testing"

	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/grammar"
	"github.com/nlstn/go-datasource/internal/observability"
	"github.com/nlstn/go-datasource/internal/pipeline"
	"github.com/nlstn/go-datasource/internal/queryable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type product struct {
	ID       uint `gorm:"primarykey"`
	Name     string
	Category string
	Price    float64
}

func seed(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite:file:"+t.Name()+"?mode=memory&cache=shared", observability.NewConfig(observability.WithServerTiming()))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&product{}))
	require.NoError(t, db.Create([]product{
		{ID: 3, Name: "Desk", Category: "Office", Price: 250},
		{ID: 1, Name: "Lamp", Category: "Home", Price: 40},
		{ID: 2, Name: "Chair", Category: "Office", Price: 120},
	}).Error)
	return db
}

func TestModel(t *testing.T) {
	db := seed(t)
	src := Model[product](db)
	assert.True(t, queryable.RequiresStableOrdering(src))

	n, err := src.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestModelThroughPipeline(t *testing.T) {
	db := seed(t)
	f, err := grammar.ParseFilter("Category~eq~'office'")
	require.NoError(t, err)

	req := &descriptor.Request{Filters: []descriptor.Filter{f}, Page: 1, PageSize: 1}
	res, err := pipeline.Execute(context.Background(), Model[product](db), req, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Data, 1)
	// The synthetic sort on ID makes the first page deterministic.
	assert.Equal(t, uint(2), res.Data[0].(product).ID)
}

func TestWithScope(t *testing.T) {
	db := seed(t)
	src := Model[product](db, WithScope(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("price > ?", 100)
	}))
	items, err := src.ToSlice(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestTable(t *testing.T) {
	db := seed(t)
	src := Table(db, "products")

	f, err := grammar.ParseFilter("name~startswith~'d'")
	require.NoError(t, err)
	res, err := pipeline.Execute(context.Background(), src, &descriptor.Request{Filters: []descriptor.Filter{f}}, pipeline.Options{Lift: true})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Desk", res.Data[0].(map[string]interface{})["name"])

	_, err = Table(db, "missing").ToSlice(context.Background())
	assert.Error(t, err)
}

func TestServerTimingCallbacks(t *testing.T) {
	db := seed(t)
	ctx := observability.WithDBTimeAccumulator(context.Background())
	_, err := Model[product](db).ToSlice(ctx)
	require.NoError(t, err)
	assert.Positive(t, observability.DBTimeAccumulatorFromContext(ctx).Duration())
}
