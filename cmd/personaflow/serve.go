package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"personaflow/engine"
	"personaflow/server"
	"personaflow/store"
	"personaflow/store/sqlite"
)

var (
	serveAddr   string
	serveDBPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow API over HTTP",
	Long: `Serve starts the HTTP API: persona chat, workflow CRUD and
execution (with SSE progress streaming), templates and knowledge files.

With --db, state is persisted to a SQLite database; without it everything
is held in memory and lost on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		provider, err := newProvider()
		if err != nil {
			return err
		}

		opts := []func(o *engine.Options){func(o *engine.Options) {
			o.Logger = logger
		}}

		if serveDBPath != "" {
			db, err := sqlite.Open(serveDBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			opts = append(opts, func(o *engine.Options) {
				o.Workflows = db
				o.Templates = db
				o.Knowledge = db
				o.Chats = db
				o.PersistentMemory = db
			})
		} else {
			opts = append(opts, func(o *engine.Options) {
				o.Workflows = store.NewInMemoryWorkflowStore()
				o.Templates = store.NewInMemoryTemplateStore()
				o.Knowledge = store.NewInMemoryKnowledgeStore()
				o.Chats = store.NewInMemoryChatStore()
				o.PersistentMemory = store.NewInMemoryPersistentMemory()
			})
		}

		e := engine.New(provider, opts...)
		srv := server.New(e, func(o *server.Options) {
			o.Logger = logger
		})

		fmt.Fprintf(os.Stderr, "Listening on %s\n", serveAddr)
		return http.ListenAndServe(serveAddr, srv)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "SQLite database path (in-memory stores if empty)")
	rootCmd.AddCommand(serveCmd)
}
