package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
)

func TestToMessage(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	event := &cloudevents.WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            cloudevents.ItemScanned,
		Source:          cloudevents.SourceFulfillment,
		Subject:         "JOB-42",
		ID:              "evt-1",
		Time:            at,
		DataContentType: "application/json",
		Data:            map[string]int{"qty": 3},
		SiteID:          "SITE-A",
	}

	msg, err := toMessage(Topics.JobEvents, event)
	require.NoError(t, err)

	assert.Equal(t, Topics.JobEvents, msg.Topic)
	assert.Equal(t, "JOB-42", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "evt-1", headers["ce_id"])
	assert.Equal(t, cloudevents.ItemScanned, headers["ce_type"])
	assert.Equal(t, "SITE-A", headers["ce_wmssiteid"])
	assert.NotContains(t, headers, "ce_wmscorrelationid", "empty extensions are omitted")

	var decoded cloudevents.WMSCloudEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.ID)
}
