package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thebtf/dojo/pkg/models"
)

func TestQueriesFor(t *testing.T) {
	priorities := []models.CoveragePriority{
		{TechniqueName: "Scissor Sweep"},
		{TechniqueName: "Armbar From Guard"},
		{TechniqueName: "scissor sweep"},
	}

	got := QueriesFor(priorities, nil)
	assert.Equal(t, []string{
		"scissor sweep bjj",
		"scissor sweep tutorial",
		"armbar from guard bjj",
		"armbar from guard tutorial",
	}, got)
}

func TestQueriesForNames_CustomTemplates(t *testing.T) {
	got := QueriesForNames([]string{"  Coach A ", ""}, []string{"%s instructional"})
	assert.Equal(t, []string{"coach a instructional"}, got)
}

func TestQueriesFor_Empty(t *testing.T) {
	assert.Empty(t, QueriesFor(nil, nil))
}
