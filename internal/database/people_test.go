package database

import (
	"context"
	"testing"

	"pretgo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeopleCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := createPerson(t, db, "MARTIN", "Lucas", "eleve")
	p.Class = "2nde B"
	require.NoError(t, db.UpdatePerson(ctx, p))

	got, err := db.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2nde B", got.Class)
	assert.True(t, got.Active)
	assert.Equal(t, "Lucas MARTIN", got.FullName())

	_, err = db.GetPerson(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdatePerson(ctx, &models.Person{ID: 9999}), ErrNotFound)
}

func TestListPeople(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createPerson(t, db, "MARTIN", "Lucas", "eleve")
	createPerson(t, db, "BERNARD", "Anne", "enseignant")
	createPerson(t, db, "DURAND", "Paul", "stagiaire")

	all, err := db.ListPeople(ctx, models.PersonFilter{Category: "tous"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	teachers, err := db.ListPeople(ctx, models.PersonFilter{Category: "enseignant"})
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "BERNARD", teachers[0].LastName)

	others, err := db.ListPeople(ctx, models.PersonFilter{Category: models.CategoryOther})
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "stagiaire", others[0].Category)

	found, err := db.ListPeople(ctx, models.PersonFilter{Query: "luc", Limit: 20})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "MARTIN", found[0].LastName)

	counts, err := db.CountPeopleByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["eleve"])
}

func TestDeletePerson(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("WithoutLoans", func(t *testing.T) {
		p := createPerson(t, db, "SEUL", "Jean", "eleve")
		deactivated, err := db.DeletePerson(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, deactivated)
		_, err = db.GetPerson(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ActiveLoanRefused", func(t *testing.T) {
		p := createPerson(t, db, "EMPRUNT", "Léa", "eleve")
		loan := &models.Loan{PersonID: p.ID, Description: "Tablette", StartedAt: "2024-01-10 09:00:00", DurationType: models.DurationDefault}
		require.NoError(t, db.CreateLoan(ctx, loan))

		_, err := db.DeletePerson(ctx, p.ID)
		assert.ErrorIs(t, err, ErrInUse)

		t.Run("HistoryDeactivates", func(t *testing.T) {
			require.NoError(t, db.ReturnLoan(ctx, loan.ID, "2024-01-11 09:00:00", ""))
			deactivated, err := db.DeletePerson(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, deactivated)

			got, err := db.GetPerson(ctx, p.ID)
			require.NoError(t, err)
			assert.False(t, got.Active)
		})
	})
}

func TestApplyPeopleImport(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	existing := createPerson(t, db, "MARTIN", "Lucas", "eleve")
	absent := createPerson(t, db, "ABSENT", "Noé", "eleve")
	holder := createPerson(t, db, "GARDE", "Inès", "eleve")
	require.NoError(t, db.CreateLoan(ctx, &models.Loan{
		PersonID: holder.ID, Description: "Casque", StartedAt: "2024-01-10 09:00:00", DurationType: models.DurationDefault,
	}))

	roster := []models.Person{
		{LastName: "MARTIN", FirstName: "Lucas", Category: "eleve", Class: "1ere A"},
		{LastName: "NOUVEAU", FirstName: "Tom", Category: "eleve", Class: "2nde C"},
	}

	t.Run("AddSkipsKnownPeople", func(t *testing.T) {
		res, err := db.ApplyPeopleImport(ctx, roster, models.ImportAdd)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Added)
		assert.Equal(t, 1, res.Skipped)
		assert.Zero(t, res.Deactivated)

		got, err := db.GetPerson(ctx, existing.ID)
		require.NoError(t, err)
		assert.Equal(t, "", got.Class)
	})

	t.Run("SyncUpdatesAndDeactivates", func(t *testing.T) {
		res, err := db.ApplyPeopleImport(ctx, roster, models.ImportSync)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Updated)
		assert.Zero(t, res.Added)
		assert.Equal(t, 1, res.Deactivated)
		assert.Equal(t, []string{"Inès GARDE (1 prêt(s))"}, res.Protected)

		got, err := db.GetPerson(ctx, existing.ID)
		require.NoError(t, err)
		assert.Equal(t, "1ere A", got.Class)

		gone, err := db.GetPerson(ctx, absent.ID)
		require.NoError(t, err)
		assert.False(t, gone.Active)

		kept, err := db.GetPerson(ctx, holder.ID)
		require.NoError(t, err)
		assert.True(t, kept.Active)
	})

	t.Run("SyncMovesCategory", func(t *testing.T) {
		res, err := db.ApplyPeopleImport(ctx, []models.Person{
			{LastName: "MARTIN", FirstName: "Lucas", Category: "agent"},
		}, models.ImportSync)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)

		got, err := db.GetPerson(ctx, existing.ID)
		require.NoError(t, err)
		assert.Equal(t, "agent", got.Category)
	})
}

func TestPersonCategories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := &models.PersonCategory{Key: "stagiaire", Label: "Stagiaire", Icon: "bi-person"}
	require.NoError(t, db.CreatePersonCategory(ctx, c))
	assert.Equal(t, int64(5), c.Order)

	assert.ErrorIs(t, db.CreatePersonCategory(ctx, &models.PersonCategory{Key: "stagiaire", Label: "x"}), ErrDuplicate)

	c.Label = "Stagiaires"
	require.NoError(t, db.UpdatePersonCategory(ctx, c))

	createPerson(t, db, "STAGE", "Eva", "stagiaire")

	_, err := db.DeletePersonCategory(ctx, c.ID, nil)
	assert.ErrorIs(t, err, ErrInUse)

	_, err = db.DeletePersonCategory(ctx, c.ID, &c.ID)
	assert.ErrorIs(t, err, ErrInUse)

	cats, err := db.ListPersonCategories(ctx)
	require.NoError(t, err)
	eleve := cats[0]
	require.Equal(t, "eleve", eleve.Key)

	moved, err := db.DeletePersonCategory(ctx, c.ID, &eleve.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	people, err := db.ListPeople(ctx, models.PersonFilter{Category: "eleve"})
	require.NoError(t, err)
	assert.Len(t, people, 1)

	_, err = db.DeletePersonCategory(ctx, 9999, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
