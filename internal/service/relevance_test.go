package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/pkg/llm"
)

// scriptedOracle replies with one canned response per call, in order.
type scriptedOracle struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
}

func (o *scriptedOracle) Complete(_ context.Context, _, prompt string) (string, llm.Usage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := len(o.prompts)
	o.prompts = append(o.prompts, prompt)

	usage := llm.Usage{PromptTokens: 100, CompletionTokens: 10}
	if i < len(o.errs) && o.errs[i] != nil {
		return "", usage, o.errs[i]
	}
	if i < len(o.responses) {
		return o.responses[i], usage, nil
	}
	return "{}", usage, nil
}

func (o *scriptedOracle) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.prompts)
}

func titled(n int) []models.ProductRecord {
	out := make([]models.ProductRecord, n)
	for i := range out {
		out[i] = models.ProductRecord{ProductID: strconv.Itoa(i), Title: "title " + strconv.Itoa(i)}
	}
	return out
}

func productIDs(records []models.ProductRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ProductID
	}
	return out
}

func TestRelevanceFilter_KeepsMatchesInOrder(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{`{"0":0,"1":1,"2":0}`}}
	f := NewRelevanceFilter(oracle, 10, 4)

	kept, usage := f.Filter(context.Background(), "speaker", titled(3))
	assert.Equal(t, []string{"0", "2"}, productIDs(kept))
	assert.Equal(t, 1, usage.Calls)
	assert.Equal(t, 100, usage.PromptTokens)
}

func TestRelevanceFilter_CapsAndStopsEarly(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"0":1,"1":0,"2":0,"3":1,"4":1,"5":1,"6":1,"7":1,"8":1,"9":0}`,
		"```json\n{\"0\":0,\"1\":0,\"2\":0}\n```",
		`{"0":0}`,
	}}
	f := NewRelevanceFilter(oracle, 10, 4)

	kept, _ := f.Filter(context.Background(), "speaker", titled(30))
	assert.Equal(t, []string{"1", "2", "9", "10"}, productIDs(kept))
	assert.Equal(t, 2, oracle.calls())
}

func TestRelevanceFilter_MalformedBatchSkipped(t *testing.T) {
	oracle := &scriptedOracle{
		responses: []string{"", `not json`, `{"0":0,"x":0,"99":0,"1":"0"}`},
		errs:      []error{nil, nil, nil},
	}
	f := NewRelevanceFilter(oracle, 2, 4)

	kept, usage := f.Filter(context.Background(), "speaker", titled(6))
	assert.Equal(t, []string{"4", "5"}, productIDs(kept))
	assert.Equal(t, 3, usage.Calls)
}

func TestRelevanceFilter_OracleErrorSkipped(t *testing.T) {
	oracle := &scriptedOracle{
		responses: []string{"", `{"0":0}`},
		errs:      []error{errors.New("boom")},
	}
	f := NewRelevanceFilter(oracle, 1, 4)

	kept, _ := f.Filter(context.Background(), "speaker", titled(2))
	assert.Equal(t, []string{"1"}, productIDs(kept))
}

func TestRelevanceFilter_AtMostCapPreservingOrder(t *testing.T) {
	all := `{"0":0,"1":0,"2":0,"3":0,"4":0,"5":0,"6":0,"7":0,"8":0,"9":0}`
	for n := 1; n <= 25; n++ {
		oracle := &scriptedOracle{responses: []string{all, all, all}}
		kept, _ := NewRelevanceFilter(oracle, 10, 4).Filter(context.Background(), "q", titled(n))

		assert.LessOrEqual(t, len(kept), 4)
		for i := 1; i < len(kept); i++ {
			prev, _ := strconv.Atoi(kept[i-1].ProductID)
			cur, _ := strconv.Atoi(kept[i].ProductID)
			assert.Less(t, prev, cur)
		}
	}
}

func TestBuildRelevancePrompt(t *testing.T) {
	prompt := buildRelevancePrompt("jbl speaker", titled(2))
	assert.Contains(t, prompt, `"jbl speaker"`)
	assert.True(t, strings.Contains(prompt, "0: title 0\n1: title 1\n"))
}
