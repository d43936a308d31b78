package tagging

// DefaultRules maps each issue tag to the phrases that trigger it.
// Config may add or override individual entries.
var DefaultRules = map[string][]string{
	"zoning": {
		"zoning",
		"zoning map",
		"zone change",
		"zoning amendment",
	},
	"rezoning": {
		"rezoning",
		"rezone",
		"zone change",
		"map amendment",
	},
	"variance": {
		"variance",
		"board of adjustment",
	},
	"planning_commission": {
		"planning commission",
		"planning & zoning",
		"planning and zoning",
	},
	"budget": {
		"budget",
		"fiscal year budget",
		"annual budget",
	},
	"tax": {
		"tax",
		"property tax",
		"tax rate",
		"millage",
	},
	"bond": {
		"bond",
		"bond issuance",
		"bond counsel",
	},
	"appropriation": {
		"appropriation",
		"appropriations",
		"appropriated",
	},
	"contract": {
		"contract",
		"agreement",
		"service agreement",
	},
	"bid": {
		"bid",
		"bids",
		"request for bids",
		"invitation to bid",
	},
	"procurement": {
		"procurement",
		"purchasing",
		"purchase order",
	},
	"election": {
		"election",
		"election day",
		"election results",
	},
	"clerk": {
		"county clerk",
		"clerk",
		"clerk's office",
	},
	"ballot": {
		"ballot",
		"ballot measure",
		"ballot question",
	},
	"school_board": {
		"school board",
		"board of education",
	},
	"curriculum": {
		"curriculum",
		"instructional materials",
	},
	"policy": {
		"policy",
		"policy update",
		"policy revision",
	},
	"lawsuit": {
		"lawsuit",
		"litigation",
		"complaint",
	},
	"settlement": {
		"settlement",
		"settle",
		"settlement agreement",
	},
	"ordinance": {
		"ordinance",
		"ordinance amendment",
	},
	"public_safety": {
		"public safety",
		"fire department",
		"emergency services",
		"police department",
	},
	"land_sale": {
		"land sale",
		"real property sale",
		"surplus property",
	},
	"eminent_domain": {
		"eminent domain",
		"condemnation",
	},
}
