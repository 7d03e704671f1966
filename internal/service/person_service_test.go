package service

import (
	"context"
	"strings"
	"testing"

	"pretgo/internal/database"
	"pretgo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCategoryKey(t *testing.T) {
	assert.Equal(t, "service_civique", CategoryKey("Service civique"))
	assert.Equal(t, "agent_dentretien", CategoryKey("Agent d'entretien"))
	assert.Equal(t, "eleve_delegue", CategoryKey("  Élève-Délégué "))
	assert.Equal(t, "", CategoryKey("!!!"))
}

func TestPersonService_CreateNormalizes(t *testing.T) {
	ctx := context.Background()
	repo := new(mockPersonRepo)
	svc := NewPersonService(repo, testLogger())

	repo.On("CreatePerson", ctx, mock.MatchedBy(func(p *models.Person) bool {
		return p.LastName == "DE LA FONTAINE" && p.FirstName == "Jean-Pierre" && p.Category == DefaultPersonCategory
	})).Return(nil)

	require.NoError(t, svc.Create(ctx, &models.Person{LastName: " de la fontaine ", FirstName: "jean-pierre"}))
	assert.ErrorIs(t, svc.Create(ctx, &models.Person{LastName: "X"}), ErrValidation)
	repo.AssertNumberOfCalls(t, "CreatePerson", 1)
}

func TestPersonService_Import(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewPersonService(db, testLogger())

	roster := "\ufeffnom;prenom;categorie;classe\n" +
		"dupont;marie;Élève;3A\n" +
		"# ══════ ENSEIGNANTS ══════;;;\n" +
		"martin;jean-pierre;prof;\n" +
		"girard;marc;;\n" +
		";;eleve;\n"

	res, err := svc.Import(ctx, strings.NewReader(roster), models.ImportAdd)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	assert.Zero(t, res.Skipped)

	people, err := svc.List(ctx, models.PersonFilter{})
	require.NoError(t, err)
	byName := map[string]models.Person{}
	for _, p := range people {
		byName[p.LastName] = p
	}
	assert.Equal(t, "eleve", byName["DUPONT"].Category)
	assert.Equal(t, "Marie", byName["DUPONT"].FirstName)
	assert.Equal(t, "enseignant", byName["MARTIN"].Category)
	assert.Equal(t, "Jean-Pierre", byName["MARTIN"].FirstName)
	assert.Equal(t, DefaultPersonCategory, byName["GIRARD"].Category)

	t.Run("AddSkipsDuplicates", func(t *testing.T) {
		res, err := svc.Import(ctx, strings.NewReader(roster), "")
		require.NoError(t, err)
		assert.Zero(t, res.Added)
		assert.Equal(t, 3, res.Skipped)
	})

	t.Run("SyncProtectsActiveBorrowers", func(t *testing.T) {
		girard := byName["GIRARD"]
		require.NoError(t, db.CreateLoan(ctx, &models.Loan{
			PersonID:     girard.ID,
			Description:  "PC",
			StartedAt:    "2024-01-10 09:00:00",
			DurationType: models.DurationDefault,
			Items:        []models.LoanItem{{Description: "PC"}},
		}))

		res, err := svc.Import(ctx, strings.NewReader("nom,prenom,categorie,classe\nDUPONT,Marie,eleve,4B\n"), models.ImportSync)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 1, res.Deactivated)
		require.Len(t, res.Protected, 1)
		assert.Contains(t, res.Protected[0], "GIRARD")

		marie, err := svc.Get(ctx, byName["DUPONT"].ID)
		require.NoError(t, err)
		assert.Equal(t, "4B", marie.Class)

		martin, err := svc.Get(ctx, byName["MARTIN"].ID)
		require.NoError(t, err)
		assert.False(t, martin.Active)
	})

	t.Run("UnknownMode", func(t *testing.T) {
		_, err := svc.Import(ctx, strings.NewReader(roster), "remplacer")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestPersonService_Categories(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewPersonService(db, testLogger())

	c := &models.PersonCategory{Label: "Service civique"}
	require.NoError(t, svc.CreateCategory(ctx, c))
	assert.Equal(t, "service_civique", c.Key)
	assert.Equal(t, "bi-person", c.Icon)

	assert.ErrorIs(t, svc.CreateCategory(ctx, &models.PersonCategory{Label: "Service Civique"}), database.ErrDuplicate)
	assert.ErrorIs(t, svc.CreateCategory(ctx, &models.PersonCategory{Label: " "}), ErrValidation)

	p := &models.Person{LastName: "Roux", FirstName: "Léa", Category: c.Key}
	require.NoError(t, svc.Create(ctx, p))

	_, err := svc.DeleteCategory(ctx, c.ID, nil)
	assert.ErrorIs(t, err, database.ErrInUse)

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	var eleve int64
	for _, cat := range cats {
		if cat.Key == "eleve" {
			eleve = cat.ID
		}
	}
	moved, err := svc.DeleteCategory(ctx, c.ID, &eleve)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "eleve", got.Category)
}

func TestPersonService_Delete(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewPersonService(db, testLogger())

	p := &models.Person{LastName: "Petit", FirstName: "Paul"}
	require.NoError(t, svc.Create(ctx, p))

	deactivated, err := svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, deactivated)

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
