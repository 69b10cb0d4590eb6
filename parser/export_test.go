package parser

var (
	CollapseBodies       = collapseBodies
	RepairDuplicatedOpen = repairDuplicatedOpen
)
