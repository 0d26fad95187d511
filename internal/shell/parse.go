package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// ErrInvalidCommand is wrapped by every error returned from Parse.
var ErrInvalidCommand = errors.New("invalid command")

// Kind identifies a shell command.
type Kind int

const (
	// KindNone is a blank or comment line.
	KindNone Kind = iota
	KindSearch
	KindShow
	KindDownload
	KindList
	KindSuggest
	KindSetDir
	KindInfo
	KindHelp
	KindQuit
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSearch:
		return "search"
	case KindShow:
		return "show"
	case KindDownload:
		return "download"
	case KindList:
		return "list"
	case KindSuggest:
		return "suggest"
	case KindSetDir:
		return "setdir"
	case KindInfo:
		return "info"
	case KindHelp:
		return "help"
	case KindQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command is one parsed shell line. Only the fields of its Kind are set.
type Command struct {
	Kind Kind

	// Query is the search query or the suggest prefix.
	Query string
	// Limit is zero when not given.
	Limit int

	DatasetID string
	Indexes   []int

	// Path is the setdir argument.
	Path string
}

type usage struct {
	syntax  string
	summary string
	example string
}

var usages = []usage{
	{"search <query> [limit]", "Search for datasets", "search climate data 20"},
	{"show <dataset_id>", "Show detailed dataset information", "show consumer-complaint-database"},
	{"download <dataset_id> [index...]", "Download dataset resources", "download my-dataset 0 2"},
	{"list organizations [limit]", "List government organizations", "list orgs"},
	{"suggest <prefix>", "Suggest dataset names", "suggest elect"},
	{"setdir <path>", "Set base download directory", "setdir ./downloads"},
	{"info", "Show session information", "info"},
	{"help", "Show this help message", "help"},
	{"quit", "Exit the shell", "quit"},
}

// Parse splits line with shell quoting rules and parses it into a
// Command. Blank lines and lines starting with # yield KindNone.
func Parse(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Command{}, nil
	}

	parts, err := shlex.Split(trimmed)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if len(parts) == 0 {
		return Command{}, nil
	}
	return ParseArgs(parts)
}

// ParseArgs parses an already split command line whose first element is
// the command name.
func ParseArgs(parts []string) (Command, error) {
	if len(parts) == 0 {
		return Command{}, nil
	}

	name, args := strings.ToLower(parts[0]), parts[1:]
	switch name {
	case "search", "s":
		return parseSearch(args)
	case "show", "describe", "d":
		if len(args) != 1 {
			return Command{}, usageError("show")
		}
		return Command{Kind: KindShow, DatasetID: args[0]}, nil
	case "download", "dl":
		return parseDownload(args)
	case "list", "ls":
		return parseList(args)
	case "suggest":
		if len(args) != 1 {
			return Command{}, usageError("suggest")
		}
		return Command{Kind: KindSuggest, Query: args[0]}, nil
	case "setdir", "cd":
		if len(args) != 1 {
			return Command{}, usageError("setdir")
		}
		return Command{Kind: KindSetDir, Path: args[0]}, nil
	case "info", "status":
		return Command{Kind: KindInfo}, nil
	case "help", "h", "?":
		return Command{Kind: KindHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: KindQuit}, nil
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, parts[0])
	}
}

// parseSearch treats a trailing number as the limit, unless it is the
// only word of the query.
func parseSearch(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, usageError("search")
	}

	cmd := Command{Kind: KindSearch}
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[len(args)-1]); err == nil {
			if n <= 0 {
				return Command{}, fmt.Errorf("%w: search limit must be positive", ErrInvalidCommand)
			}
			cmd.Limit = n
			args = args[:len(args)-1]
		}
	}
	cmd.Query = strings.Join(args, " ")
	return cmd, nil
}

func parseDownload(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, usageError("download")
	}

	cmd := Command{Kind: KindDownload, DatasetID: args[0]}
	for _, raw := range args[1:] {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Command{}, fmt.Errorf("%w: resource index %q is not a non-negative integer", ErrInvalidCommand, raw)
		}
		cmd.Indexes = append(cmd.Indexes, n)
	}
	return cmd, nil
}

func parseList(args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, usageError("list")
	}

	switch strings.ToLower(args[0]) {
	case "organizations", "orgs":
	default:
		return Command{}, fmt.Errorf("%w: unknown list type %q (available: organizations)", ErrInvalidCommand, args[0])
	}

	cmd := Command{Kind: KindList}
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return Command{}, fmt.Errorf("%w: list limit must be a positive integer", ErrInvalidCommand)
		}
		cmd.Limit = n
	}
	return cmd, nil
}

func usageError(name string) error {
	for _, u := range usages {
		if strings.HasPrefix(u.syntax, name) {
			return fmt.Errorf("%w: usage: %s", ErrInvalidCommand, u.syntax)
		}
	}
	return ErrInvalidCommand
}
