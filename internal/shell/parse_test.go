package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"", Command{}},
		{"   ", Command{}},
		{"# a comment", Command{}},
		{"  #search climate", Command{}},
		{"search climate", Command{Kind: KindSearch, Query: "climate"}},
		{"s climate data 20", Command{Kind: KindSearch, Query: "climate data", Limit: 20}},
		{"SEARCH energy solar wind", Command{Kind: KindSearch, Query: "energy solar wind"}},
		{"search 2024", Command{Kind: KindSearch, Query: "2024"}},
		{`search "air quality" 5`, Command{Kind: KindSearch, Query: "air quality", Limit: 5}},
		{"show consumer-complaint-database", Command{Kind: KindShow, DatasetID: "consumer-complaint-database"}},
		{"describe x", Command{Kind: KindShow, DatasetID: "x"}},
		{"d x", Command{Kind: KindShow, DatasetID: "x"}},
		{"download my-dataset", Command{Kind: KindDownload, DatasetID: "my-dataset"}},
		{"dl my-dataset 0 2", Command{Kind: KindDownload, DatasetID: "my-dataset", Indexes: []int{0, 2}}},
		{"list organizations", Command{Kind: KindList}},
		{"ls orgs 25", Command{Kind: KindList, Limit: 25}},
		{"suggest elect", Command{Kind: KindSuggest, Query: "elect"}},
		{"setdir ./downloads", Command{Kind: KindSetDir, Path: "./downloads"}},
		{`cd "/tmp/My Downloads"`, Command{Kind: KindSetDir, Path: "/tmp/My Downloads"}},
		{"info", Command{Kind: KindInfo}},
		{"status", Command{Kind: KindInfo}},
		{"help", Command{Kind: KindHelp}},
		{"?", Command{Kind: KindHelp}},
		{"h", Command{Kind: KindHelp}},
		{"quit", Command{Kind: KindQuit}},
		{"exit", Command{Kind: KindQuit}},
		{"q", Command{Kind: KindQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line    string
		message string
	}{
		{"search", "usage: search <query> [limit]"},
		{"show", "usage: show <dataset_id>"},
		{"show a b", "usage: show <dataset_id>"},
		{"download", "usage: download <dataset_id> [index...]"},
		{"dl x one", `resource index "one"`},
		{"dl x -1", `resource index "-1"`},
		{"list", "usage: list organizations [limit]"},
		{"list tags", `unknown list type "tags"`},
		{"ls orgs none", "list limit"},
		{"setdir", "usage: setdir <path>"},
		{"search climate 0", "search limit must be positive"},
		{"frobnicate", `unknown command "frobnicate"`},
		{`search "unterminated`, "invalid command"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.ErrorIs(t, err, ErrInvalidCommand)
			assert.ErrorContains(t, err, tt.message)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "download", KindDownload.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
