package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlake/cardlake/pkg/types"
)

func cardsSchema(version int) *Schema {
	cols := map[string]Column{
		"card_id":        {Type: TypeString},
		"name":           {Type: TypeString},
		"set_id":         {Type: TypeString},
		"market":         {Type: TypeFloat, Nullable: true},
		"ingestion_date": {Type: TypeDate},
	}
	if version >= 2 {
		cols["rarity"] = Column{Type: TypeString, Nullable: true, Since: 2}
	}
	return &Schema{Table: "tcg_cards", Version: version, Columns: cols}
}

func validRow() map[string]interface{} {
	return map[string]interface{}{
		"card_id":        "base1-4",
		"name":           "Charizard",
		"set_id":         "base1",
		"market":         412.5,
		"ingestion_date": "2026-08-28",
	}
}

func TestValidateValidRow(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(cardsSchema(1)))
	assert.NoError(t, r.Validate("tcg_cards", validRow()))
}

func TestValidateMissingRequiredField(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(cardsSchema(1)))

	row := validRow()
	delete(row, "set_id")

	err := r.Validate("tcg_cards", row)
	require.Error(t, err)

	var sv *types.SchemaViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "set_id", sv.Field)
	assert.Equal(t, "null", sv.Observed)
}

func TestValidateUnknownColumn(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(cardsSchema(1)))

	row := validRow()
	row["hp"] = 120

	var sv *types.SchemaViolation
	require.ErrorAs(t, r.Validate("tcg_cards", row), &sv)
	assert.Equal(t, "hp", sv.Field)
}

func TestValidateTypeMismatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(cardsSchema(1)))

	row := validRow()
	row["market"] = "not a price"

	var sv *types.SchemaViolation
	require.ErrorAs(t, r.Validate("tcg_cards", row), &sv)
	assert.Equal(t, "market", sv.Field)
	assert.Equal(t, "float", sv.Expected)
}

func TestBackwardCompatibleEvolution(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(cardsSchema(1)))

	// A row valid under v1 must remain valid after v2 adds an optional column.
	row := validRow()
	require.NoError(t, r.Validate("tcg_cards", row))

	require.NoError(t, r.Register(cardsSchema(2)))
	cur, err := r.Get("tcg_cards")
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Version)

	assert.NoError(t, r.Validate("tcg_cards", row))
}

func TestBreakingEvolutionRejectedAtLoad(t *testing.T) {
	// A required column added after v1 is a breaking change.
	s := cardsSchema(2)
	s.Columns["grading"] = Column{Type: TypeString, Nullable: false, Since: 2}

	r := NewRegistry()
	assert.Error(t, r.Register(s))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	doc := `table: tcg_card_prices
version: 1
columns:
  card_id:
    type: string
  price_type:
    type: string
  market:
    type: float
  ingestion_date:
    type: date
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tcg_card_prices.yaml"), []byte(doc), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))

	assert.NoError(t, r.Validate("tcg_card_prices", map[string]interface{}{
		"card_id":        "base1-4",
		"price_type":     "holofoil",
		"market":         388.0,
		"ingestion_date": "2026-08-28",
	}))
}

func TestUnknownTable(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Validate("nope", map[string]interface{}{}))
}
