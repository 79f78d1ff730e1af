package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/irisworks/iris/internal/config"
	"github.com/irisworks/iris/internal/errors"
	"github.com/irisworks/iris/internal/instructions"
	"github.com/irisworks/iris/internal/mcp"
	"github.com/irisworks/iris/internal/memory"
	"github.com/irisworks/iris/internal/workspace"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "iris",
		Usage:   "Agent runtime with offloaded memory",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Value: ".", Usage: "Sandbox root directory"},
		},
		Commands: []*cli.Command{
			bootstrapCmd(),
			putCmd(),
			getCmd(),
			sliceCmd(),
			listCmd(),
			statsCmd(),
			recoverCmd(),
			serveCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// bootstrapCmd creates the bootstrap command.
func bootstrapCmd() *cli.Command {
	return &cli.Command{
		Name:  "bootstrap",
		Usage: "Create the .iris sandbox tree and seed default instruction fragments",
		Action: func(c *cli.Context) error {
			root, err := resolveRoot(c)
			if err != nil {
				return outputError(err)
			}
			if err := workspace.EnsureWorkspace(root); err != nil {
				return outputError(err)
			}
			if err := instructions.Seed(workspace.NewFS(root, nil)); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"root": root, "bootstrapped": true})
		},
	}
}

// putCmd creates the put command.
func putCmd() *cli.Command {
	return &cli.Command{
		Name:  "put",
		Usage: "Store stdin content as a memory blob and print its ref",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: memory.TypeOther, Usage: "Blob type classifier"},
			&cli.StringFlag{Name: "subtype", Usage: "Free-form subtype, e.g. a tool name"},
			&cli.StringFlag{Name: "mime", Usage: "MIME type (default text/plain)"},
			&cli.StringFlag{Name: "title", Usage: "Human label (derived from content if empty)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("content must be piped via stdin"))
			}
			text, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if text == "" {
				return outputError(errors.NewInvalidRequest("content is required"))
			}

			store, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer store.Close()

			ref, err := store.PutText(text, memory.PutOptions{
				Type:    c.String("type"),
				Subtype: c.String("subtype"),
				MIME:    c.String("mime"),
				Title:   c.String("title"),
				Tags:    parseTags(c.String("tags")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(ref)
		},
	}
}

// getCmd creates the get command.
func getCmd() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the full content of a memory blob",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "meta", Usage: "Print the index row instead of the content"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("memory id is required"))
			}
			store, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer store.Close()

			id := c.Args().First()
			if c.Bool("meta") {
				meta, err := store.GetMetadata(id)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(meta)
			}

			content, err := store.GetFull(id)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprint(c.App.Writer, content)
			return nil
		},
	}
}

// sliceCmd creates the slice command.
func sliceCmd() *cli.Command {
	return &cli.Command{
		Name:      "slice",
		Usage:     "Print a bounded line range of a memory blob",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start", Value: 1, Usage: "1-based first line"},
			&cli.IntFlag{Name: "end", Value: 200, Usage: "1-based last line, inclusive"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("memory id is required"))
			}
			store, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer store.Close()

			slice, err := store.GetSlice(c.Args().First(), c.Int("start"), c.Int("end"))
			if err != nil {
				return outputError(err)
			}
			fmt.Fprint(c.App.Writer, slice)
			return nil
		},
	}
}

// listCmd creates the list command.
func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List memory index rows, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Filter by blob type"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 50, Usage: "Maximum rows"},
		},
		Action: func(c *cli.Context) error {
			store, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer store.Close()

			rows, err := store.List(c.String("type"), c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"memories": rows, "count": len(rows)})
		},
	}
}

// statsCmd creates the stats command.
func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize the memory store",
		Action: func(c *cli.Context) error {
			store, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer store.Close()

			stats, err := store.Stats()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(stats)
		},
	}
}

// recoverCmd creates the recover command.
func recoverCmd() *cli.Command {
	return &cli.Command{
		Name:  "recover",
		Usage: "Rebuild missing index rows by scanning the blob directory",
		Action: func(c *cli.Context) error {
			store, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer store.Close()

			n, err := store.RecoverIndex()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"recovered": n})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the memory inspection tools over MCP stdio",
		Action: func(c *cli.Context) error {
			root, err := resolveRoot(c)
			if err != nil {
				return outputError(err)
			}
			return serveMCP(root)
		},
	}
}

// serveMCP opens the store under root and serves it over stdio.
func serveMCP(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if err := workspace.EnsureWorkspace(abs); err != nil {
		return err
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return err
	}
	store, err := memory.Open(abs, cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()
	return mcp.Run(store, Version)
}

// Helper functions

// resolveRoot makes the --root flag absolute.
func resolveRoot(c *cli.Context) (string, error) {
	return filepath.Abs(c.String("root"))
}

// openStore opens the memory store under the resolved root, creating the
// sandbox tree if absent. Bootstrap is idempotent.
func openStore(c *cli.Context) (*memory.Store, error) {
	root, err := resolveRoot(c)
	if err != nil {
		return nil, err
	}
	if err := workspace.EnsureWorkspace(root); err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	return memory.Open(root, cfg, nil)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if irisErr, ok := err.(*errors.IrisError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", irisErr.Code, irisErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
