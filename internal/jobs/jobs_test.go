package jobs_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/queue"
)

func TestPayloadWireNames(t *testing.T) {
	tenant := uuid.MustParse("6f1c2a34-0000-4000-8000-000000000001")
	file := uuid.MustParse("6f1c2a34-0000-4000-8000-000000000002")

	data, err := json.Marshal(jobs.ProcessFile{FileID: file, TenantID: tenant})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fileId":"`+file.String()+`","tenantId":"`+tenant.String()+`"}`, string(data))

	data, err = json.Marshal(jobs.SendNotification{
		TenantID:     tenant,
		Recipients:   []string{"m@example.com"},
		Subject:      "Sales Alert",
		TemplateID:   "drop-alert",
		TemplateData: map[string]any{"dropPercent": "30.00"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"tenantId": "`+tenant.String()+`",
		"recipients": ["m@example.com"],
		"subject": "Sales Alert",
		"templateId": "drop-alert",
		"templateData": {"dropPercent": "30.00"}
	}`, string(data))
}

func TestProducerRoutesToQueues(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemory(nil)
	p := jobs.NewProducer(broker)
	tenant := uuid.New()

	_, err := p.ProcessFile(ctx, jobs.ProcessFile{FileID: uuid.New(), TenantID: tenant})
	require.NoError(t, err)
	_, err = p.GenerateInsights(ctx, jobs.GenerateInsights{TenantID: tenant, Type: "DAILY"})
	require.NoError(t, err)
	_, err = p.EvaluateAutomations(ctx, jobs.EvaluateAutomations{TenantID: tenant})
	require.NoError(t, err)
	_, err = p.SendNotification(ctx, jobs.SendNotification{TenantID: tenant, Recipients: []string{"a@b.c"}})
	require.NoError(t, err)

	assert.Equal(t, jobs.KindProcessFile, broker.Jobs(jobs.QueueFileProcessing)[0].Kind)
	assert.Equal(t, jobs.KindGenerateInsights, broker.Jobs(jobs.QueueInsights)[0].Kind)
	assert.Equal(t, jobs.KindEvaluateAutomations, broker.Jobs(jobs.QueueAutomation)[0].Kind)
	assert.Equal(t, jobs.KindSendNotification, broker.Jobs(jobs.QueueNotification)[0].Kind)
}

func TestProducerDedupe(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemory(nil)
	p := jobs.NewProducer(broker)
	payload := jobs.EvaluateAutomations{TenantID: uuid.New()}

	first, err := p.EvaluateAutomations(ctx, payload, jobs.WithDedupeKey("t:bucket"))
	require.NoError(t, err)
	second, err := p.EvaluateAutomations(ctx, payload, jobs.WithDedupeKey("t:bucket"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, broker.Jobs(jobs.QueueAutomation), 1)
}

func TestPoolDefaults(t *testing.T) {
	pools := jobs.PoolDefaults()

	assert.Equal(t, 5, pools[jobs.QueueFileProcessing].Concurrency)
	assert.Equal(t, 3, pools[jobs.QueueInsights].Concurrency)
	assert.Equal(t, 2, pools[jobs.QueueAutomation].Concurrency)
	assert.Equal(t, 10, pools[jobs.QueueNotification].Concurrency)
}
