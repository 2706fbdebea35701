// Package seed loads directory fixtures (service areas, customers,
// connections, teams, admins) for local deployments and tests.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
)

// Fixtures is the on-disk fixture document. JSON fixtures use the same keys.
type Fixtures struct {
	ServiceAreas []domain.ServiceArea `yaml:"service_areas"`
	Customers    []domain.Customer    `yaml:"customers"`
	Connections  []domain.Connection  `yaml:"connections"`
	Teams        []domain.TeamMember  `yaml:"teams"`
	Admins       []domain.Admin       `yaml:"admins"`
}

// Report counts the records written.
type Report struct {
	ServiceAreas int `json:"service_areas"`
	Customers    int `json:"customers"`
	Connections  int `json:"connections"`
	Teams        int `json:"teams"`
	Admins       int `json:"admins"`
}

// LoadFile reads a YAML or JSON-with-comments fixture file.
func LoadFile(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	return Parse(data)
}

// Parse decodes a fixture document and checks its references.
func Parse(data []byte) (*Fixtures, error) {
	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := fixtures.Validate(); err != nil {
		return nil, err
	}
	return &fixtures, nil
}

// Validate rejects missing ids and references to records the document does not define.
func (f *Fixtures) Validate() error {
	areas := make(map[string]bool, len(f.ServiceAreas))
	for _, area := range f.ServiceAreas {
		if area.ID == "" {
			return fmt.Errorf("service area without id")
		}
		areas[area.ID] = true
	}
	customers := make(map[string]bool, len(f.Customers))
	for _, customer := range f.Customers {
		if customer.ID == "" {
			return fmt.Errorf("customer without id")
		}
		customers[customer.ID] = true
	}
	connections := make(map[string]string, len(f.Connections))
	for _, conn := range f.Connections {
		if conn.ID == "" {
			return fmt.Errorf("connection without id")
		}
		if !customers[conn.CustomerID] {
			return fmt.Errorf("connection %s: unknown customer %q", conn.ID, conn.CustomerID)
		}
		if conn.ServiceAreaID != "" && !areas[conn.ServiceAreaID] {
			return fmt.Errorf("connection %s: unknown service area %q", conn.ID, conn.ServiceAreaID)
		}
		connections[conn.ID] = conn.CustomerID
	}
	for _, customer := range f.Customers {
		if customer.ActiveConnectionID == nil {
			continue
		}
		owner, ok := connections[*customer.ActiveConnectionID]
		if !ok || owner != customer.ID {
			return fmt.Errorf("customer %s: active connection %q is not theirs", customer.ID, *customer.ActiveConnectionID)
		}
	}
	for _, team := range f.Teams {
		if team.ID == "" {
			return fmt.Errorf("team member without id")
		}
		for _, area := range team.ServiceAreaIDs {
			if !areas[area] {
				return fmt.Errorf("team member %s: unknown service area %q", team.ID, area)
			}
		}
	}
	for _, admin := range f.Admins {
		if admin.ID == "" {
			return fmt.Errorf("admin without id")
		}
	}
	return nil
}

// Apply upserts the fixtures in dependency order. Team members get ascending
// creation times in file order so routing ties resolve the way the file reads.
func Apply(ctx context.Context, w repository.DirectoryWriter, f *Fixtures, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var report Report
	for _, area := range f.ServiceAreas {
		if err := w.UpsertServiceArea(ctx, area); err != nil {
			return report, fmt.Errorf("service area %s: %w", area.ID, err)
		}
		report.ServiceAreas++
	}
	// Customers reference connections and connections reference customers;
	// write customers first without the link, then restore it.
	for _, customer := range f.Customers {
		bare := customer
		bare.ActiveConnectionID = nil
		if err := w.UpsertCustomer(ctx, bare); err != nil {
			return report, fmt.Errorf("customer %s: %w", customer.ID, err)
		}
	}
	for _, conn := range f.Connections {
		if err := w.UpsertConnection(ctx, conn); err != nil {
			return report, fmt.Errorf("connection %s: %w", conn.ID, err)
		}
		report.Connections++
	}
	for _, customer := range f.Customers {
		if err := w.UpsertCustomer(ctx, customer); err != nil {
			return report, fmt.Errorf("customer %s: %w", customer.ID, err)
		}
		report.Customers++
	}
	start := time.Now().UTC()
	for i, team := range f.Teams {
		if team.CreatedAt.IsZero() {
			team.CreatedAt = start.Add(time.Duration(i) * time.Millisecond)
		}
		if err := w.UpsertTeamMember(ctx, team); err != nil {
			return report, fmt.Errorf("team member %s: %w", team.ID, err)
		}
		report.Teams++
	}
	for _, admin := range f.Admins {
		if err := w.UpsertAdmin(ctx, admin); err != nil {
			return report, fmt.Errorf("admin %s: %w", admin.ID, err)
		}
		report.Admins++
	}
	logger.Info("directory fixtures applied",
		zap.Int("service_areas", report.ServiceAreas),
		zap.Int("customers", report.Customers),
		zap.Int("connections", report.Connections),
		zap.Int("teams", report.Teams),
		zap.Int("admins", report.Admins))
	return report, nil
}
