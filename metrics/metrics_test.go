package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistersCounters(t *testing.T) {
	m := New()

	m.RPCRetriesTotal.WithLabelValues("LOOKUP", "transport").Inc()
	m.ReadaheadActivations.Inc()
	m.TaskSlotsCapacity.Set(65536)

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "aznfsc_rpc_retries_total")
	require.Contains(t, names, "aznfsc_readahead_activations_total")
	require.Contains(t, names, "aznfsc_task_slots_capacity")
}
