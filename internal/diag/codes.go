package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Входные данные
	InpInfo              Code = 1000
	InpDecode            Code = 1001
	InpSchemaVersion     Code = 1002
	InpDuplicateModule   Code = 1003
	InpDuplicateFunction Code = 1004
	InpDuplicateStruct   Code = 1005
	InpBadTemp           Code = 1006
	InpBadLabel          Code = 1007
	InpDuplicateLabel    Code = 1008
	InpMissingTerminator Code = 1009
	InpBadOperands       Code = 1010
	InpUnknownStruct     Code = 1011
	InpBadEntrySignature Code = 1012
	InpBadConstant       Code = 1013
	InpBadAddress        Code = 1014

	// Трансляция
	TrInfo               Code = 2000
	TrUnresolvedGeneric  Code = 2001
	TrUnsupportedNative  Code = 2002
	TrUnknownCallee      Code = 2003
	TrRecursionLimit     Code = 2004
	TrRecursiveStruct    Code = 2005
	TrUnsupportedOp      Code = 2006
	TrMultipleEntryMods  Code = 2007
	TrSelectorCollision  Code = 2008

	// Линковка
	LnkInfo              Code = 3000
	LnkToolMissing       Code = 3001
	LnkToolFailed        Code = 3002
	LnkUnresolvedSymbol  Code = 3003
	LnkMissingExport     Code = 3004
	LnkBadBlob           Code = 3005
	LnkUnexpectedExport  Code = 3006
)

var codeDescription = map[Code]string{
	UnknownCode:          "Unknown error",
	InpInfo:              "Input information",
	InpDecode:            "Failed to decode compilation unit",
	InpSchemaVersion:     "Unsupported compilation unit schema",
	InpDuplicateModule:   "Duplicate module",
	InpDuplicateFunction: "Duplicate function",
	InpDuplicateStruct:   "Duplicate struct",
	InpBadTemp:           "Temporary index out of range",
	InpBadLabel:          "Branch to unknown label",
	InpDuplicateLabel:    "Label defined twice",
	InpMissingTerminator: "Function body does not end with a terminator",
	InpBadOperands:       "Wrong operand count",
	InpUnknownStruct:     "Unknown struct",
	InpBadEntrySignature: "Unsupported entry function signature",
	InpBadConstant:       "Malformed constant",
	InpBadAddress:        "Malformed address",
	TrInfo:               "Translation information",
	TrUnresolvedGeneric:  "Unresolved generic parameter",
	TrUnsupportedNative:  "Unsupported native function",
	TrUnknownCallee:      "Call to unknown function",
	TrRecursionLimit:     "Instantiation depth limit exceeded",
	TrRecursiveStruct:    "Recursive struct layout",
	TrUnsupportedOp:      "Unsupported operation",
	TrMultipleEntryMods:  "Entry functions declared in more than one module",
	TrSelectorCollision:  "Selector collision",
	LnkInfo:              "Link information",
	LnkToolMissing:       "External tool not found",
	LnkToolFailed:        "External tool failed",
	LnkUnresolvedSymbol:  "Unresolved symbol after runtime combination",
	LnkMissingExport:     "Required export missing",
	LnkBadBlob:           "Malformed PolkaVM blob",
	LnkUnexpectedExport:  "Unexpected export",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("INP%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("TRN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("LNK%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
