package catalog

// Default returns the built-in catalog served when no catalog file is
// configured. A fresh copy is returned on every call.
func Default() Catalog {
	return Catalog{
		Taxonomy:  Taxonomy{Categories: defaultCategories()},
		Locations: defaultLocations(),
	}
}

func defaultCategories() []Category {
	return []Category{
		{
			ID:          "residential",
			Name:        "Residential",
			Description: "Heating, cooling and indoor air quality for homes.",
			Systems: []System{
				{
					ID:   "heating",
					Name: "Heating",
					Icon: "flame",
					ServiceTypes: []ServiceType{
						{ID: "repairs", Name: "Heating Repair", Icon: "wrench", Items: []Item{
							{ID: "furnace", Name: "Furnace", Icon: "furnace"},
							{ID: "heat-pump", Name: "Heat Pump", Icon: "heat-pump"},
							{ID: "boiler", Name: "Boiler", Icon: "boiler"},
						}},
						{ID: "installation", Name: "Heating Installation", Icon: "tools", Items: []Item{
							{ID: "furnace", Name: "Furnace", Icon: "furnace"},
							{ID: "heat-pump", Name: "Heat Pump", Icon: "heat-pump"},
						}},
						{ID: "maintenance", Name: "Heating Maintenance", Icon: "clipboard", Items: []Item{
							{ID: "furnace-tune-up", Name: "Furnace Tune-Up", Icon: "furnace"},
						}},
						{
							ID:              "emergency",
							Name:            "Emergency Heating Service",
							Icon:            "alert",
							Description:     "24/7 no-heat response.",
							AllowEmptyItems: true,
						},
					},
				},
				{
					ID:   "cooling",
					Name: "Cooling",
					Icon: "snowflake",
					ServiceTypes: []ServiceType{
						{ID: "repairs", Name: "AC Repair", Icon: "wrench", Items: []Item{
							{ID: "central-ac", Name: "Central Air Conditioner", Icon: "ac"},
							{ID: "ductless-mini-split", Name: "Ductless Mini-Split", Icon: "mini-split"},
						}},
						{ID: "installation", Name: "AC Installation", Icon: "tools", Items: []Item{
							{ID: "central-ac", Name: "Central Air Conditioner", Icon: "ac"},
							{ID: "ductless-mini-split", Name: "Ductless Mini-Split", Icon: "mini-split"},
						}},
						{ID: "maintenance", Name: "AC Maintenance", Icon: "clipboard", Items: []Item{
							{ID: "ac-tune-up", Name: "AC Tune-Up", Icon: "ac"},
						}},
						{
							ID:              "emergency",
							Name:            "Emergency AC Service",
							Icon:            "alert",
							AllowEmptyItems: true,
						},
					},
				},
				{
					ID:   "air-quality",
					Name: "Indoor Air Quality",
					Icon: "wind",
					ServiceTypes: []ServiceType{
						{ID: "installation", Name: "Air Quality Installation", Icon: "tools", Items: []Item{
							{ID: "air-purifier", Name: "Whole-Home Air Purifier", Icon: "purifier"},
							{ID: "humidifier", Name: "Whole-Home Humidifier", Icon: "droplet"},
							{ID: "dehumidifier", Name: "Dehumidifier", Icon: "droplet"},
						}},
						{ID: "duct-cleaning", Name: "Duct Cleaning", Icon: "duct", Items: []Item{
							{ID: "air-ducts", Name: "Air Ducts", Icon: "duct"},
							{ID: "dryer-vent", Name: "Dryer Vent", Icon: "vent"},
						}},
					},
				},
			},
		},
		{
			ID:          "commercial",
			Name:        "Commercial",
			Description: "HVAC service for offices, retail and light industrial buildings.",
			Systems: []System{
				{
					ID:   "heating",
					Name: "Commercial Heating",
					Icon: "flame",
					ServiceTypes: []ServiceType{
						{ID: "repairs", Name: "Commercial Heating Repair", Icon: "wrench", Items: []Item{
							{ID: "rooftop-unit", Name: "Rooftop Unit", Icon: "rtu"},
							{ID: "unit-heater", Name: "Unit Heater", Icon: "heater"},
							{ID: "boiler", Name: "Commercial Boiler", Icon: "boiler"},
						}},
						{ID: "maintenance", Name: "Preventive Maintenance Plans", Icon: "clipboard", Items: []Item{
							{ID: "rooftop-unit", Name: "Rooftop Unit", Icon: "rtu"},
						}},
					},
				},
				{
					ID:   "cooling",
					Name: "Commercial Cooling",
					Icon: "snowflake",
					ServiceTypes: []ServiceType{
						{ID: "repairs", Name: "Commercial AC Repair", Icon: "wrench", Items: []Item{
							{ID: "rooftop-unit", Name: "Rooftop Unit", Icon: "rtu"},
							{ID: "split-system", Name: "Split System", Icon: "ac"},
						}},
						{ID: "installation", Name: "Commercial AC Installation", Icon: "tools", Items: []Item{
							{ID: "rooftop-unit", Name: "Rooftop Unit", Icon: "rtu"},
							{ID: "vrf-system", Name: "VRF System", Icon: "vrf"},
						}},
					},
				},
				{
					ID:   "refrigeration",
					Name: "Refrigeration",
					Icon: "thermometer",
					ServiceTypes: []ServiceType{
						{ID: "repairs", Name: "Refrigeration Repair", Icon: "wrench", Items: []Item{
							{ID: "walk-in-cooler", Name: "Walk-In Cooler", Icon: "cooler"},
							{ID: "ice-machine", Name: "Ice Machine", Icon: "ice"},
						}},
					},
				},
			},
		},
	}
}

func defaultLocations() []Location {
	return []Location{
		{ID: "akron-oh", Name: "Akron", County: "Summit", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.0814, Lon: -81.5190}},
		{ID: "barberton-oh", Name: "Barberton", County: "Summit", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.0128, Lon: -81.6051}},
		{ID: "cuyahoga-falls-oh", Name: "Cuyahoga Falls", County: "Summit", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.1339, Lon: -81.4846}},
		{ID: "fairlawn-oh", Name: "Fairlawn", County: "Summit", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.1278, Lon: -81.6098}},
		{ID: "green-oh", Name: "Green", County: "Summit", StateCode: "OH", Coordinates: &GeoPoint{Lat: 40.9459, Lon: -81.4832}},
		{ID: "hudson-oh", Name: "Hudson", County: "Summit", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.2401, Lon: -81.4407}},
		{ID: "stow-oh", Name: "Stow", County: "Summit", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.1595, Lon: -81.4404}},
		{ID: "tallmadge-oh", Name: "Tallmadge", County: "Summit", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.1014, Lon: -81.4418}},
		{ID: "kent-oh", Name: "Kent", County: "Portage", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.1537, Lon: -81.3579}},
		{ID: "canton-oh", Name: "Canton", County: "Stark", StateCode: "OH", Coordinates: &GeoPoint{Lat: 40.7989, Lon: -81.3784}},
		{ID: "north-canton-oh", Name: "North Canton", County: "Stark", StateCode: "OH", Coordinates: &GeoPoint{Lat: 40.8759, Lon: -81.4023}},
		{ID: "medina-oh", Name: "Medina", County: "Medina", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.1384, Lon: -81.8637}},
		{ID: "wadsworth-oh", Name: "Wadsworth", County: "Medina", StateCode: "OH", Coordinates: &GeoPoint{Lat: 41.0256, Lon: -81.7299}},
	}
}
