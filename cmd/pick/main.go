// Command pick reads the table written by the collect stage and prints the
// single home with the least weighted weekly travel inside the bounds.
package main

import (
	"flag"
	"os"

	"homescout/config"
	"homescout/services"
	"homescout/storage"
	"homescout/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	input := flag.String("in", cfg.ExportCSVPath, "export table written by the collect stage")
	projectPath := flag.String("project", cfg.ProjectConfigPath, "project config with bounds and objective")
	flag.Parse()

	project, err := config.LoadProject(*projectPath)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if err := project.ValidateSelection(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	table, err := storage.ReadExport(*input)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	logger.Info("[pick] Loaded %d homes from %s", len(table.Rows), *input)

	svc := services.NewSelectorService(logger)
	sel, err := svc.Select(table, project.Bounds, project.Objective)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	svc.Print(sel)
}
