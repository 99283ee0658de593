package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const initContainerTimeout = 60 * time.Second

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var skipDynamo bool

	cmd := &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new cardlake project",
		Long:  "Creates project scaffolding and optionally starts a local DynamoDB container.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0], skipDynamo)
		},
	}

	cmd.Flags().BoolVar(&skipDynamo, "skip-dynamodb", false, "Skip starting DynamoDB Local container")
	return cmd
}

func runInit(projectName string, skipDynamo bool) error {
	bold := color.New(color.Bold)

	_, _ = bold.Printf("Initializing cardlake project: %s\n", projectName)

	// Create directory structure: schema contracts, the raw lake layout the
	// ingestion collaborator writes into, and the processed layer.
	dirs := []string{
		"schemas",
		filepath.Join("data", "raw", "pokemon_tcg", "cards"),
		filepath.Join("data", "raw", "pokemon_tcg", "prices"),
		filepath.Join("data", "processed"),
	}

	for _, dir := range dirs {
		path := filepath.Join(projectName, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
	}

	// Write cardlake.yaml
	configPath := filepath.Join(projectName, "cardlake.yaml")
	configContent := `rawSource: local
store: local
localRaw:
  dir: ./data
localStore:
  dir: ./data
schemaDir: ./schemas
normalizer:
  dropThreshold: 0.05
fact:
  bucketGranularity: week
alerts:
  - type: console
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := writeStarterContracts(filepath.Join(projectName, "schemas")); err != nil {
		return fmt.Errorf("writing schema contracts: %w", err)
	}

	color.Green("  ✓ Project scaffolded")

	if !skipDynamo {
		if err := startDynamoLocal(); err != nil {
			color.Yellow("  ⚠ DynamoDB Local setup skipped: %v", err)
			color.Yellow("    Run manually: docker run -d --name cardlake-dynamodb -p 8000:8000 amazon/dynamodb-local")
		} else {
			color.Green("  ✓ DynamoDB Local container started")
		}
	} else {
		color.Yellow("  → DynamoDB Local setup skipped (--skip-dynamodb)")
	}

	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  # drop raw captures under data/raw/pokemon_tcg/<entity>/ingestion_date=<batch-id>/")
	fmt.Println("  cardlake run 2026-08-28")
	fmt.Println("  cardlake status 2026-08-28")
	return nil
}

func startDynamoLocal() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not found in PATH")
	}

	// Reuse an existing container when present.
	checkCmd := exec.Command("docker", "inspect", "cardlake-dynamodb")
	if checkCmd.Run() == nil {
		startCmd := exec.Command("docker", "start", "cardlake-dynamodb")
		if err := startCmd.Run(); err != nil {
			return fmt.Errorf("starting existing container: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initContainerTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "run", "-d",
		"--name", "cardlake-dynamodb",
		"-p", "8000:8000",
		"amazon/dynamodb-local",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

func writeStarterContracts(dir string) error {
	contracts := map[string]string{
		"tcg_cards.yaml": `table: tcg_cards
version: 1
columns:
  card_id:
    type: string
  name:
    type: string
  supertype:
    type: string
    nullable: true
  number:
    type: string
    nullable: true
  rarity:
    type: string
    nullable: true
  set_id:
    type: string
  set_name:
    type: string
    nullable: true
  set_printed_total:
    type: integer
    nullable: true
  set_release_date:
    type: string
    nullable: true
  ingestion_date:
    type: date
`,
		"tcg_card_prices.yaml": `table: tcg_card_prices
version: 1
columns:
  card_id:
    type: string
  price_type:
    type: string
  market:
    type: float
  low:
    type: float
    nullable: true
  mid:
    type: float
    nullable: true
  high:
    type: float
    nullable: true
  tcg_update_date:
    type: string
    nullable: true
  ingestion_date:
    type: date
`,
	}

	for name, content := range contracts {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
