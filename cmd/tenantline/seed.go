// ABOUTME: Seed command loading message templates from a TOML file
// ABOUTME: Attributes templates to an existing account and skips known names

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/IRakow/tenantline/internal/config"
	"github.com/IRakow/tenantline/internal/store"
)

// seedFile is the TOML shape consumed by the seed command.
type seedFile struct {
	Templates []seedTemplate `toml:"templates"`
}

type seedTemplate struct {
	Name      string   `toml:"name"`
	Category  string   `toml:"category"`
	Subject   string   `toml:"subject"`
	Content   string   `toml:"content"`
	Variables []string `toml:"variables"`
	Public    bool     `toml:"public"`
}

// runSeed loads templates from a TOML file into the database, owned by the
// account given via --email. Templates whose name already exists for that
// account are skipped, so re-running is safe.
func runSeed(ctx context.Context) error {
	var file, email string
	if err := parseFlags(os.Args[2:], map[string]*string{
		"file":  &file,
		"email": &email,
	}); err != nil {
		return err
	}
	if file == "" || email == "" {
		return fmt.Errorf("--file and --email are required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var seed seedFile
	if _, err := toml.DecodeFile(file, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}
	if len(seed.Templates) == 0 {
		return fmt.Errorf("no templates found in %s", file)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	owner, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", email, err)
	}

	existing, err := st.ListTemplates(ctx, owner.ID, "")
	if err != nil {
		return fmt.Errorf("listing templates: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t.Name] = true
	}

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	created := 0
	for _, tpl := range seed.Templates {
		if tpl.Name == "" || tpl.Content == "" {
			return fmt.Errorf("template entries need both name and content")
		}
		if known[tpl.Name] {
			gray.Printf("  - %s (exists, skipped)\n", tpl.Name)
			continue
		}

		now := time.Now().UTC()
		if err := st.CreateTemplate(ctx, &store.Template{
			ID:        uuid.New().String(),
			Name:      tpl.Name,
			Category:  tpl.Category,
			Subject:   tpl.Subject,
			Content:   tpl.Content,
			Variables: tpl.Variables,
			CreatedBy: owner.ID,
			IsPublic:  tpl.Public,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("creating template %q: %w", tpl.Name, err)
		}
		green.Printf("  ✓ %s\n", tpl.Name)
		created++
	}

	fmt.Printf("\nSeeded %d template(s) from %s\n", created, file)
	return nil
}
