package driver

import (
	"encoding/xml"
	"fmt"
	"os"
)

// XML shapes for INDI driver definition files:
//
//	<driversList>
//	  <devGroup group="Telescopes">
//	    <device label="Telescope Simulator" skel="...">
//	      <driver name="Telescope Simulator">indi_simulator_telescope</driver>
//	      <version>1.0</version>
//	    </device>
//	  </devGroup>
//	</driversList>
type driversList struct {
	XMLName xml.Name   `xml:"driversList"`
	Groups  []devGroup `xml:"devGroup"`
}

type devGroup struct {
	Group   string      `xml:"group,attr"`
	Devices []devDevice `xml:"device"`
}

type devDevice struct {
	Label   string    `xml:"label,attr"`
	Skel    string    `xml:"skel,attr"`
	Driver  devDriver `xml:"driver"`
	Version string    `xml:"version"`
}

type devDriver struct {
	Name   string `xml:"name,attr"`
	Binary string `xml:",chardata"`
}

// parseDefinitionFile reads one definition file and returns the
// drivers it declares, in document order. Returns an error wrapping
// ErrParse on malformed XML.
func parseDefinitionFile(path string) ([]Driver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var list driversList
	if err := xml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	var drivers []Driver
	for _, group := range list.Groups {
		for _, dev := range group.Devices {
			if dev.Label == "" || dev.Driver.Binary == "" {
				continue
			}
			version := dev.Version
			if version == "" {
				version = "1.0"
			}
			drivers = append(drivers, Driver{
				Name:         dev.Driver.Name,
				Label:        dev.Label,
				Version:      version,
				Binary:       dev.Driver.Binary,
				Family:       group.Group,
				SkeletonPath: dev.Skel,
			})
		}
	}

	return drivers, nil
}
