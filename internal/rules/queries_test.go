package rules_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/harbor/internal/rules"
)

const ruleColumns = "ar.id, ar.tenant_id, ar.name, ar.enabled, ar.definition, ar.created_at, ar.updated_at"

func TestRuleQueries(t *testing.T) {
	tenant, id := uuid.New(), uuid.New()

	t.Run("list", func(t *testing.T) {
		sql, args := rules.ListBuilder(tenant).BuildPage(3, 20)

		assert.Equal(t,
			"SELECT "+ruleColumns+" FROM public.automation_rules ar WHERE ar.tenant_id = $1 ORDER BY ar.created_at DESC LIMIT 20 OFFSET 40",
			sql,
		)
		assert.Equal(t, []any{tenant}, args)
	})

	t.Run("find", func(t *testing.T) {
		sql, args := rules.FindQuery(tenant, id)

		assert.Equal(t,
			"SELECT "+ruleColumns+" FROM public.automation_rules ar WHERE ar.id = $1 AND ar.tenant_id = $2",
			sql,
		)
		assert.Equal(t, []any{id, tenant}, args)
	})

	t.Run("enabled oldest first", func(t *testing.T) {
		sql, args := rules.EnabledQuery(tenant)

		assert.Equal(t,
			"SELECT "+ruleColumns+" FROM public.automation_rules ar WHERE ar.tenant_id = $1 AND ar.enabled = $2 ORDER BY ar.created_at ASC",
			sql,
		)
		assert.Equal(t, []any{tenant, true}, args)
	})
}

func TestUpdateKeepsUnsetColumns(t *testing.T) {
	for _, col := range []string{"name", "enabled", "definition"} {
		assert.Contains(t, rules.UpdateSQL, col+" = COALESCE($")
	}
	assert.Contains(t, rules.UpdateSQL, "WHERE id = $1 AND tenant_id = $2")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(rules.UpdateSQL), "created_at, updated_at"))
}
