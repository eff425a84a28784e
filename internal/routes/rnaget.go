package routes

// DefaultHandler serves requests the tree does not route, at the API root
const DefaultHandler = "default"

// DefaultAction is the HTTP method bound on every handler node
const DefaultAction = "GET"

// RNAGet is the RNAget resource hierarchy served by the API
var RNAGet = Tree{
	{PathPart: "projects", Handler: "projects", Children: Tree{
		{PathPart: "{project_id}", Handler: "project_id"},
		{PathPart: "filters", Handler: "project_filters"},
	}},
	{PathPart: "studies", Handler: "studies", Children: Tree{
		{PathPart: "{studies_id}", Handler: "studies_id"},
		{PathPart: "filters", Handler: "study_filters"},
	}},
	{PathPart: "expressions", Handler: "expression_ids", Children: Tree{
		{PathPart: "formats", Handler: "expressions_formats"},
		{PathPart: "units", Handler: "expressions_units"},
		{PathPart: "ticket", Handler: "expressions_ticket"},
		{PathPart: "{expression_id}", Children: Tree{
			{PathPart: "ticket", Handler: "expressions_id_ticket"},
			{PathPart: "bytes", Handler: "expressions_id_bytes"},
		}},
		{PathPart: "bytes", Handler: "expressions_bytes"},
		{PathPart: "filters", Handler: "expressions_filters"},
	}},
	{PathPart: "service-info", Handler: "service_info"},
}

// VPCHandlers must run inside the internal network so they can reach the
// search domain over its private endpoint. Every other handler runs with
// default networking and reads only the public portal or static data.
var VPCHandlers = []string{
	"expressions_bytes",
}

// RequiresVPC reports whether the named handler needs network placement
func RequiresVPC(name string) bool {
	for _, h := range VPCHandlers {
		if h == name {
			return true
		}
	}
	return false
}
