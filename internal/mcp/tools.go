package mcp

import "github.com/mark3labs/mcp-go/mcp"

var resolveToolDef = mcp.NewTool("spectrum_resolve",
	mcp.WithDescription("Resolve a Universal Spectrum Identifier (USI) to a PROXI spectrum record. "+
		"Locates the named run under the configured search prefixes, reads the addressed spectrum, "+
		"centroids profile data, merges ion-mobility frames, and returns peaks plus attributes."),
	mcp.WithString("usi",
		mcp.Required(),
		mcp.Description("The USI, e.g. mzspec:PXD000001:run01:scan:1203"),
	),
	mcp.WithArray("prefixes",
		mcp.Description("Override the configured search prefixes for this call"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithBoolean("metadata_only",
		mcp.Description("Skip peak loading; the record reports status PEAK UNAVAILABLE"),
	),
)

var locateToolDef = mcp.NewTool("spectrum_locate",
	mcp.WithDescription("Find the raw file a USI names without opening it. "+
		"Returns the resolved path and detected format (mzML, thermo_raw, or bruker_tdf)."),
	mcp.WithString("usi",
		mcp.Required(),
		mcp.Description("The USI whose run should be located"),
	),
	mcp.WithArray("prefixes",
		mcp.Description("Override the configured search prefixes for this call"),
		mcp.Items(map[string]any{"type": "string"}),
	),
)

var parseToolDef = mcp.NewTool("usi_parse",
	mcp.WithDescription("Parse a USI into its components (collection, run, index type, "+
		"index value, optional interpretation) without touching the file system."),
	mcp.WithString("usi",
		mcp.Required(),
		mcp.Description("The USI to parse"),
	),
)

var invalidateToolDef = mcp.NewTool("cache_invalidate",
	mcp.WithDescription("Drop all cached run locations. Use after raw files move on disk."),
)
