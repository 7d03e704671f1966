package database

import (
	"context"
	"testing"

	"pretgo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryNumbering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	next, err := db.NextInventoryNumber(ctx, "Informatique")
	require.NoError(t, err)
	assert.Equal(t, "PC-00001", next)

	first := createItem(t, db, "Informatique", "")
	assert.Equal(t, "PC-00001", first.InventoryNumber)
	assert.Equal(t, models.ItemAvailable, first.State)

	second := createItem(t, db, "Informatique", "")
	assert.Equal(t, "PC-00002", second.InventoryNumber)

	t.Run("UnknownTypeUsesDefaultPrefix", func(t *testing.T) {
		it := createItem(t, db, "Inconnu", "")
		assert.Equal(t, "INV-00001", it.InventoryNumber)
	})

	t.Run("ContinuesAfterManualNumber", func(t *testing.T) {
		createItem(t, db, "Sport", "SPT-00040")
		next, err := db.NextInventoryNumber(ctx, "Sport")
		require.NoError(t, err)
		assert.Equal(t, "SPT-00041", next)
	})

	t.Run("FallsBackToCount", func(t *testing.T) {
		createItem(t, db, "Livres", "LIV-A")
		next, err := db.NextInventoryNumber(ctx, "Livres")
		require.NoError(t, err)
		assert.Equal(t, "LIV-00002", next)
	})

	t.Run("Duplicate", func(t *testing.T) {
		err := db.CreateItem(ctx, &models.Item{Type: "Informatique", InventoryNumber: "PC-00001"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestItemsCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	it := createItem(t, db, "Informatique", "PC-00010")
	it.SerialNumber = "SN-123"
	it.InventoryNumber = ""
	require.NoError(t, db.UpdateItem(ctx, it))

	got, err := db.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "PC-00010", got.InventoryNumber)
	assert.Equal(t, "SN-123", got.SerialNumber)
	assert.Equal(t, "Informatique Dell Latitude", got.Label())

	byCode, err := db.FindItemByCode(ctx, "SN-123")
	require.NoError(t, err)
	assert.Equal(t, it.ID, byCode.ID)

	_, err = db.FindItemByCode(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.DeleteItem(ctx, it.ID))
	_, err = db.FindItemByCode(ctx, "PC-00010")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, db.DeleteItem(ctx, 9999), ErrNotFound)
}

func TestDeleteItem_OnLoan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	it := createItem(t, db, "Informatique", "PC-00001")
	p := createPerson(t, db, "DUPONT", "Marie", "eleve")
	require.NoError(t, db.CreateLoan(ctx, &models.Loan{
		PersonID: p.ID, Description: "PC", StartedAt: "2024-01-10 09:00:00",
		DurationType: models.DurationDefault,
		Items:        []models.LoanItem{{ItemID: &it.ID, Description: "PC"}},
	}))

	assert.ErrorIs(t, db.DeleteItem(ctx, it.ID), ErrInUse)
}

func TestListItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	lent := createItem(t, db, "Informatique", "PC-00001")
	createItem(t, db, "Informatique", "PC-00002")
	createItem(t, db, "Sport", "SPT-00001")
	lent.State = models.ItemLent
	require.NoError(t, db.UpdateItem(ctx, lent))

	all, err := db.ListItems(ctx, models.ItemFilter{Type: "tous"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pcs, err := db.ListItems(ctx, models.ItemFilter{Type: "Informatique"})
	require.NoError(t, err)
	assert.Len(t, pcs, 2)

	search, err := db.ListItems(ctx, models.ItemFilter{Query: "PC-", Limit: 20})
	require.NoError(t, err)
	require.Len(t, search, 2)
	assert.Equal(t, "PC-00002", search[0].InventoryNumber)

	available, err := db.ListItems(ctx, models.ItemFilter{State: models.ItemAvailable})
	require.NoError(t, err)
	assert.Len(t, available, 2)

	byID, err := db.GetItemsByIDs(ctx, []int64{lent.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)

	counts, err := db.CountItemsByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["Informatique"])
}

func TestImportItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createItem(t, db, "Informatique", "PC-00001")

	res, err := db.ImportItems(ctx, []models.Item{
		{Type: "Informatique", InventoryNumber: "PC-00001"},
		{Type: "Informatique", InventoryNumber: "PC-00002"},
		{Type: "Sport", InventoryNumber: "SPT-00001"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Duplicates)
}

func TestItemCategories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := &models.ItemCategory{Name: "Robotique", Prefix: " rob "}
	require.NoError(t, db.CreateItemCategory(ctx, c))
	assert.Equal(t, "ROB", c.Prefix)
	assert.ErrorIs(t, db.CreateItemCategory(ctx, &models.ItemCategory{Name: "Robotique"}), ErrDuplicate)

	require.NoError(t, db.UpdateItemCategoryPrefix(ctx, c.ID, "rbt"))
	it := createItem(t, db, "Robotique", "")
	assert.Equal(t, "RBT-00001", it.InventoryNumber)

	_, err := db.DeleteItemCategory(ctx, c.ID, nil)
	assert.ErrorIs(t, err, ErrInUse)

	cats, err := db.ListItemCategories(ctx)
	require.NoError(t, err)
	var other models.ItemCategory
	for _, cat := range cats {
		if cat.Name == "Autre" {
			other = cat
		}
	}
	require.NotZero(t, other.ID)

	moved, err := db.DeleteItemCategory(ctx, c.ID, &other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	got, err := db.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "Autre", got.Type)

	unused := &models.ItemCategory{Name: "Vide"}
	require.NoError(t, db.CreateItemCategory(ctx, unused))
	moved, err = db.DeleteItemCategory(ctx, unused.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, moved)
}
