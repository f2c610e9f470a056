package zone

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// The JSON schema below is the external contract shared with the layout
// editor and the settings panel. Field names must not change.

type layoutJSON struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Type         int                `json:"type"`
	ZoneCount    int                `json:"zoneCount"`
	Zones        []zoneJSON         `json:"zones"`
	ZonePadding  *int               `json:"zonePadding,omitempty"`
	OuterGap     *int               `json:"outerGap,omitempty"`
	ShaderID     string             `json:"shaderId,omitempty"`
	ShaderParams map[string]float64 `json:"shaderParams,omitempty"`
}

type zoneJSON struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	ZoneNumber       int         `json:"zoneNumber"`
	RelativeGeometry relRectJSON `json:"relativeGeometry"`
	Appearance       *Appearance `json:"appearance,omitempty"`
}

type relRectJSON struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MarshalJSON serializes the layout in the external schema.
func (l *Layout) MarshalJSON() ([]byte, error) {
	out := layoutJSON{
		ID:           l.ID.String(),
		Name:         l.Name,
		Type:         int(l.Type),
		ZoneCount:    len(l.Zones),
		Zones:        make([]zoneJSON, 0, len(l.Zones)),
		ZonePadding:  l.ZonePadding,
		OuterGap:     l.OuterGap,
		ShaderID:     l.ShaderID,
		ShaderParams: l.ShaderParams,
	}
	for i := range l.Zones {
		z := &l.Zones[i]
		out.Zones = append(out.Zones, zoneJSON{
			ID:         z.ID.String(),
			Name:       z.Name,
			ZoneNumber: z.Number,
			RelativeGeometry: relRectJSON{
				X: z.Relative.X, Y: z.Relative.Y,
				Width: z.Relative.Width, Height: z.Relative.Height,
			},
			Appearance: z.Appearance,
		})
	}
	return json.Marshal(out)
}

// ParseLayout decodes and validates a layout from its JSON form. A layout
// that fails validation is rejected whole; there is no partial load.
func ParseLayout(data []byte) (*Layout, error) {
	var raw layoutJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed layout JSON: %w", err)
	}
	id, err := uuid.Parse(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("layout %q: invalid id: %w", raw.Name, err)
	}
	if raw.ZoneCount != 0 && raw.ZoneCount != len(raw.Zones) {
		return nil, fmt.Errorf("layout %q: zoneCount %d does not match %d zones",
			raw.Name, raw.ZoneCount, len(raw.Zones))
	}

	l := &Layout{
		ID:           id,
		Name:         raw.Name,
		Type:         LayoutType(raw.Type),
		Zones:        make([]Zone, 0, len(raw.Zones)),
		ZonePadding:  raw.ZonePadding,
		OuterGap:     raw.OuterGap,
		ShaderID:     raw.ShaderID,
		ShaderParams: raw.ShaderParams,
	}
	for _, zj := range raw.Zones {
		zid, err := uuid.Parse(zj.ID)
		if err != nil {
			return nil, fmt.Errorf("layout %q zone %q: invalid id: %w", raw.Name, zj.Name, err)
		}
		l.Zones = append(l.Zones, Zone{
			ID:     zid,
			Number: zj.ZoneNumber,
			Name:   zj.Name,
			Relative: RelRect{
				X: zj.RelativeGeometry.X, Y: zj.RelativeGeometry.Y,
				Width: zj.RelativeGeometry.Width, Height: zj.RelativeGeometry.Height,
			},
			Appearance: zj.Appearance,
		})
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("layout %q: %w", raw.Name, err)
	}
	return l, nil
}
