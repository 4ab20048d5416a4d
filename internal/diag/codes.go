package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Вход: чтение и декодирование документа front end'а
	InpInfo          Code = 1000
	InpReadFailed    Code = 1001
	InpDecodeFailed  Code = 1002
	InpBadReference  Code = 1003
	InpFrontendError Code = 1004
	InpFilterError   Code = 1005
	InpExcluded      Code = 1006

	// Типы
	TypInfo            Code = 3000
	TypMappingFallback Code = 3001

	// Понижение: диапазон 4001..4099 это неподдерживаемые конструкции
	LowInfo                  Code = 4000
	LowUnsupportedConstruct  Code = 4001
	LowGenericLambdaMulti    Code = 4002
	LowReturnInTry           Code = 4003
	LowUnknownStdMember      Code = 4004
	LowGoto                  Code = 4005
	LowUnion                 Code = 4006
	LowBitField              Code = 4007
	LowVariadic              Code = 4008
	LowMemberPointer         Code = 4009
	LowCaseInNestedBlock     Code = 4010
	LowGenericLambdaInferred Code = 4101
	LowTemplatePattern       Code = 4102

	// Раскладка
	LayInfo               Code = 5000
	LayInvariantViolation Code = 5001
	LayValueCycle         Code = 5002
	LayIncompleteRecord   Code = 5003

	// Вывод
	EmtInfo            Code = 6000
	EmtOrderingFailure Code = 6001
	EmtSyntaxCheck     Code = 6002
	EmtDuplicateSymbol Code = 6003

	// Драйвер
	DrvInfo         Code = 7000
	DrvCacheCorrupt Code = 7001
	DrvMinVersion   Code = 7002
)

var codeDescription = map[Code]string{
	UnknownCode: "Unknown error",

	InpInfo:          "Input information",
	InpReadFailed:    "Failed to read translation unit",
	InpDecodeFailed:  "Malformed front-end document",
	InpBadReference:  "Dangling node or type reference",
	InpFrontendError: "Front-end command failed",
	InpFilterError:   "Pre-filter program failed",
	InpExcluded:      "Declaration excluded by filter",

	TypInfo:            "Type information",
	TypMappingFallback: "Type mapped to opaque bytes",

	LowInfo:                  "Lowering information",
	LowUnsupportedConstruct:  "Unsupported construct",
	LowGenericLambdaMulti:    "Generic lambda used with several instantiations",
	LowReturnInTry:           "Return inside try block",
	LowUnknownStdMember:      "Unknown standard library member",
	LowGoto:                  "goto is not supported",
	LowUnion:                 "Unions are not supported",
	LowBitField:              "Bit-fields are not supported",
	LowVariadic:              "C variadic functions are not supported",
	LowMemberPointer:         "Pointers to members are not supported",
	LowCaseInNestedBlock:     "case label inside a nested block",
	LowGenericLambdaInferred: "Generic lambda without observed instantiation",
	LowTemplatePattern:       "Uninstantiated template skipped",

	LayInfo:               "Layout information",
	LayInvariantViolation: "Layout invariant violation",
	LayValueCycle:         "Record contains itself by value",
	LayIncompleteRecord:   "Incomplete record",

	EmtInfo:            "Emission information",
	EmtOrderingFailure: "Cannot order type definitions",
	EmtSyntaxCheck:     "Generated Rust failed syntax check",
	EmtDuplicateSymbol: "Duplicate item name in module",

	DrvInfo:         "Driver information",
	DrvCacheCorrupt: "Cache entry ignored",
	DrvMinVersion:   "Configuration requires a newer cxxlower",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("INP%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("TYP%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("EMT%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("DRV%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	if desc, ok := codeDescription[c]; ok {
		return desc
	}
	return codeDescription[UnknownCode]
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// Unsupported reports whether c belongs to the UnsupportedConstruct family:
// the declaration carrying it is skipped, the unit continues.
func (c Code) Unsupported() bool {
	return c >= LowUnsupportedConstruct && c < 4100
}

// Fatal reports whether c aborts the translation unit.
func (c Code) Fatal() bool {
	switch c {
	case LayInvariantViolation, LayValueCycle, EmtOrderingFailure:
		return true
	}
	return false
}
