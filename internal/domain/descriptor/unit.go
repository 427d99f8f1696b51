package descriptor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/coreos/go-systemd/v22/unit"
)

// Unit file section names.
const (
	SectionUnit    = "Unit"
	SectionService = "Service"
	SectionInstall = "Install"
)

// UnitOptions returns the unit file contents as ordered options.
func (d Descriptor) UnitOptions() []*unit.UnitOption {
	return []*unit.UnitOption{
		unit.NewUnitOption(SectionUnit, "Description", "Node Exporter"),
		unit.NewUnitOption(SectionUnit, "Documentation", "https://github.com/prometheus/node_exporter"),
		unit.NewUnitOption(SectionUnit, "After", "network.target"),
		unit.NewUnitOption(SectionService, "User", d.User),
		unit.NewUnitOption(SectionService, "Group", d.Group),
		unit.NewUnitOption(SectionService, "Type", "simple"),
		unit.NewUnitOption(SectionService, "ExecStart", d.ExecStart()),
		unit.NewUnitOption(SectionService, "Restart", "always"),
		unit.NewUnitOption(SectionService, "LimitNOFILE", "4096"),
		unit.NewUnitOption(SectionInstall, "WantedBy", "multi-user.target"),
	}
}

// RenderUnit serializes the unit file.
func (d Descriptor) RenderUnit() ([]byte, error) {
	data, err := io.ReadAll(unit.Serialize(d.UnitOptions()))
	if err != nil {
		return nil, fmt.Errorf("failed to render unit file: %w", err)
	}
	return data, nil
}

// UnitMatches reports whether an on-disk unit file carries exactly the
// options this descriptor renders. Formatting and comments are ignored.
func (d Descriptor) UnitMatches(onDisk []byte) (bool, error) {
	existing, err := unit.DeserializeOptions(bytes.NewReader(onDisk))
	if err != nil {
		return false, fmt.Errorf("failed to parse unit file: %w", err)
	}
	return unit.AllMatch(existing, d.UnitOptions()), nil
}
