package catalog

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/01moynul/marzetti-backend/internal/assets"
	"github.com/01moynul/marzetti-backend/internal/assets/assetstest"
	"github.com/01moynul/marzetti-backend/internal/database/dbtest"
	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

type fixture struct {
	svc   *Service
	db    *sql.DB
	dir   string
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	dir := t.TempDir()
	store, err := assets.NewLocalStore(dir, "/uploads")
	require.NoError(t, err)

	f := &fixture{
		db:    db,
		dir:   dir,
		clock: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(db, assets.NewManager(store, 1<<20))
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) tick() {
	f.clock = f.clock.Add(time.Minute)
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (f *fixture) countProducts(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&n))
	return n
}

func (f *fixture) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c, err := f.svc.CreateCategory(context.Background(), name)
	require.NoError(t, err)
	return c
}

func (f *fixture) product(t *testing.T, name string, categoryID int64) *models.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), models.ProductInput{
		Name:       name,
		Price:      decimal.RequireFromString("9.99"),
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return p
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie), "expected IntegrityError, got %v", err)
	return ie.Reason
}

// --- Categories ---

func TestCreateCategory_DuplicateNameConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	drinks := f.category(t, "Drinks")
	assert.Equal(t, "drinks", drinks.Slug)

	_, err := f.svc.CreateCategory(ctx, "Drinks")
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, ReasonCategoryExists, reasonOf(t, err))

	// Case-sensitive: a different spelling is a different category
	_, err = f.svc.CreateCategory(ctx, "drinks")
	assert.NoError(t, err)

	snacks := f.category(t, "Snacks")
	_, err = f.svc.RenameCategory(ctx, snacks.ID, "Drinks")
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, ReasonCategoryNameTaken, reasonOf(t, err))

	got, err := f.svc.GetCategory(ctx, snacks.ID)
	require.NoError(t, err)
	assert.Equal(t, "Snacks", got.Name)
}

func TestCreateCategory_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"too long", string(make([]byte, 101))},
		{"too many characters", strings.Repeat("ñ", 101)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateCategory(ctx, tc.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCategoryName_LimitCountsCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 60 characters, 120 bytes
	name := strings.Repeat("ñ", 60)
	c, err := f.svc.CreateCategory(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, c.Name)

	renamed, err := f.svc.RenameCategory(ctx, c.ID, strings.Repeat("é", 100))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 100), renamed.Name)
}

func TestRenameCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")

	// Renaming to its own name is not a conflict
	same, err := f.svc.RenameCategory(ctx, c.ID, "Drinks")
	require.NoError(t, err)
	assert.Equal(t, "Drinks", same.Name)

	renamed, err := f.svc.RenameCategory(ctx, c.ID, "Cold Drinks")
	require.NoError(t, err)
	assert.Equal(t, "Cold Drinks", renamed.Name)
	assert.Equal(t, "cold-drinks", renamed.Slug)

	_, err = f.svc.RenameCategory(ctx, 999, "Anything")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestDeleteCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.category(t, "Empty")
	require.NoError(t, f.svc.DeleteCategory(ctx, empty.ID))
	_, err := f.svc.GetCategory(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	used := f.category(t, "Used")
	f.product(t, "Cola", used.ID)

	err = f.svc.DeleteCategory(ctx, used.ID)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, ReasonCategoryInUse, reasonOf(t, err))

	_, err = f.svc.GetCategory(ctx, used.ID)
	assert.NoError(t, err, "category must remain")

	assert.ErrorIs(t, f.svc.DeleteCategory(ctx, 999), ErrCategoryNotFound)
}

func TestListCategories_OrderedByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	f.category(t, "Snacks")
	f.category(t, "Drinks")

	list, err = f.svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Drinks", list[0].Name)
	assert.Equal(t, "Snacks", list[1].Name)
}

// --- Products ---

func TestCreateProduct_UnknownCategoryPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.countProducts(t)
	_, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:       "Ghost",
		Price:      decimal.NewFromInt(1),
		CategoryID: 12345,
		Image:      assetstest.FileHeader(t, "ghost.png", []byte("png")),
	})
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, ReasonCategoryNotPresent, reasonOf(t, err))
	assert.Equal(t, before, f.countProducts(t))
	assert.Empty(t, f.files(t))
}

func TestCreateProduct_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")

	testCases := []struct {
		name  string
		input models.ProductInput
	}{
		{"missing name", models.ProductInput{Price: decimal.NewFromInt(1), CategoryID: c.ID}},
		{"negative price", models.ProductInput{Name: "A", Price: decimal.NewFromInt(-1), CategoryID: c.ID}},
		{"price too large", models.ProductInput{Name: "A", Price: decimal.NewFromInt(100_000_000), CategoryID: c.ID}},
		{"missing category", models.ProductInput{Name: "A", Price: decimal.NewFromInt(1)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateProduct(ctx, tc.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Zero(t, f.countProducts(t))
}

func TestCreateProduct_NameLimitCountsCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Cafés")

	name := strings.Repeat("é", 150)
	p, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:       name,
		Price:      decimal.NewFromInt(1),
		CategoryID: c.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, name, p.Name)

	tooLong := strings.Repeat("é", 201)
	_, err = f.svc.UpdateProduct(ctx, p.ID, models.ProductPatch{Name: &tooLong})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateProduct_RoundsPriceAndJoinsCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")
	desc := "  Fizzy  "

	p, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:        " Cola ",
		Description: &desc,
		Price:       decimal.RequireFromString("1.995"),
		CategoryID:  c.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Cola", p.Name)
	require.NotNil(t, p.Description)
	assert.Equal(t, "Fizzy", *p.Description)
	assert.True(t, decimal.RequireFromString("2.00").Equal(p.Price), p.Price.String())
	assert.Equal(t, "Drinks", p.CategoryName)
	assert.Nil(t, p.ImagePath)
	assert.True(t, f.clock.Equal(p.CreatedAt), p.CreatedAt)
	assert.True(t, p.CreatedAt.Equal(p.UpdatedAt))
}

func TestUpdateProduct_ReplacesImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")

	p, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:       "Cola",
		Price:      decimal.NewFromInt(2),
		CategoryID: c.ID,
		Image:      assetstest.FileHeader(t, "old.png", []byte("old")),
	})
	require.NoError(t, err)
	require.NotNil(t, p.ImagePath)
	oldName := *p.ImagePath
	assert.Equal(t, []string{oldName}, f.files(t))

	updated, err := f.svc.UpdateProduct(ctx, p.ID, models.ProductPatch{
		Image: assetstest.FileHeader(t, "new.jpg", []byte("new")),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ImagePath)
	newName := *updated.ImagePath

	assert.NotEqual(t, oldName, newName)
	assert.Equal(t, []string{newName}, f.files(t))

	data, err := os.ReadFile(filepath.Join(f.dir, newName))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	_, err = os.Stat(filepath.Join(f.dir, oldName))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestUpdateProduct_ConcurrentImageReplacementsLeaveOneFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")

	p, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:       "Cola",
		Price:      decimal.NewFromInt(2),
		CategoryID: c.ID,
		Image:      assetstest.FileHeader(t, "first.png", []byte("first")),
	})
	require.NoError(t, err)

	const writers = 4
	patches := make([]models.ProductPatch, writers)
	for i := range patches {
		patches[i] = models.ProductPatch{Image: assetstest.FileHeader(t, "next.png", []byte{byte('a' + i)})}
	}

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range patches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateProduct(ctx, p.ID, patches[i])
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	final, err := f.svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, final.ImagePath)
	assert.Equal(t, []string{*final.ImagePath}, f.files(t))
}

func TestUpdateProduct_FailedUpdateKeepsOldImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")

	p, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:       "Cola",
		Price:      decimal.NewFromInt(2),
		CategoryID: c.ID,
		Image:      assetstest.FileHeader(t, "old.png", []byte("old")),
	})
	require.NoError(t, err)

	missing := int64(999)
	_, err = f.svc.UpdateProduct(ctx, p.ID, models.ProductPatch{
		CategoryID: &missing,
		Image:      assetstest.FileHeader(t, "new.png", []byte("new")),
	})
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, []string{*p.ImagePath}, f.files(t))

	got, err := f.svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.CategoryID)
	assert.Equal(t, *p.ImagePath, *got.ImagePath)
}

func TestUpdateProduct_PriceOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")
	desc := "Fizzy"

	p, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:        "Cola",
		Description: &desc,
		Price:       decimal.NewFromInt(2),
		CategoryID:  c.ID,
	})
	require.NoError(t, err)

	f.tick()
	price := decimal.RequireFromString("3.50")
	updated, err := f.svc.UpdateProduct(ctx, p.ID, models.ProductPatch{Price: &price})
	require.NoError(t, err)

	assert.Equal(t, "Cola", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Fizzy", *updated.Description)
	assert.Equal(t, c.ID, updated.CategoryID)
	assert.True(t, price.Equal(updated.Price))
	assert.True(t, p.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(p.UpdatedAt))
}

func TestUpdateProduct_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")
	p := f.product(t, "Cola", c.ID)

	name := "Water"
	_, err := f.svc.UpdateProduct(ctx, 999, models.ProductPatch{Name: &name})
	assert.ErrorIs(t, err, ErrProductNotFound)

	zero := int64(0)
	_, err = f.svc.UpdateProduct(ctx, p.ID, models.ProductPatch{CategoryID: &zero})
	assert.ErrorIs(t, err, ErrInvalidInput)

	blank := " "
	_, err = f.svc.UpdateProduct(ctx, p.ID, models.ProductPatch{Name: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)

	other := f.category(t, "Water")
	moved, err := f.svc.UpdateProduct(ctx, p.ID, models.ProductPatch{CategoryID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, "Water", moved.CategoryName)
}

func TestDeleteProduct_ToleratesMissingFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")

	p, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:       "Cola",
		Price:      decimal.NewFromInt(2),
		CategoryID: c.ID,
		Image:      assetstest.FileHeader(t, "cola.png", []byte("png")),
	})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, *p.ImagePath)))

	require.NoError(t, f.svc.DeleteProduct(ctx, p.ID))
	_, err = f.svc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Zero(t, f.countProducts(t))

	assert.ErrorIs(t, f.svc.DeleteProduct(ctx, p.ID), ErrProductNotFound)
}

func TestDeleteProduct_RemovesImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")

	p, err := f.svc.CreateProduct(ctx, models.ProductInput{
		Name:       "Cola",
		Price:      decimal.NewFromInt(2),
		CategoryID: c.ID,
		Image:      assetstest.FileHeader(t, "cola.png", []byte("png")),
	})
	require.NoError(t, err)
	require.Len(t, f.files(t), 1)

	require.NoError(t, f.svc.DeleteProduct(ctx, p.ID))
	assert.Empty(t, f.files(t))
}

func TestListProducts_NewestFirstAndFiltered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	drinks := f.category(t, "Cold Drinks")
	snacks := f.category(t, "Snacks")

	f.product(t, "Cola", drinks.ID)
	f.tick()
	f.product(t, "Chips", snacks.ID)
	f.tick()
	f.product(t, "Water", drinks.ID)

	all, err := f.svc.ListProducts(ctx, models.ProductFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Water", "Chips", "Cola"}, []string{all[0].Name, all[1].Name, all[2].Name})

	testCases := []struct {
		name    string
		filters models.ProductFilters
		want    []string
	}{
		{"by id", models.ProductFilters{CategoryID: drinks.ID}, []string{"Water", "Cola"}},
		{"by slug", models.ProductFilters{Category: "cold-drinks"}, []string{"Water", "Cola"}},
		{"by name", models.ProductFilters{Category: "Snacks"}, []string{"Chips"}},
		{"unknown", models.ProductFilters{Category: "nope"}, []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := f.svc.ListProducts(ctx, tc.filters)
			require.NoError(t, err)
			got := []string{}
			for _, p := range list {
				got = append(got, p.Name)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListProducts_SameTimestampOrderedByID(t *testing.T) {
	f := newFixture(t)
	c := f.category(t, "Drinks")

	first := f.product(t, "First", c.ID)
	second := f.product(t, "Second", c.ID)

	list, err := f.svc.ListProducts(context.Background(), models.ProductFilters{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestForeignKeyBackstop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Drinks")
	f.product(t, "Cola", c.ID)

	// The storage layer refuses even when the application check is bypassed.
	_, err := f.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, c.ID)
	assert.Error(t, err)
}
