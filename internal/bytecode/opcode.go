// Package bytecode implements the dataframe engine's bytecode core: the
// 40-byte Bytecode instruction layout, the RegValue register tag set, and
// the BytecodeBuilder used by the query planner to emit instructions while
// tracking scopes, scratch slots and register caching.
package bytecode

// Option identifies a bytecode instruction's opcode: a closed, ordered set
// of small integers with a debug String() method and a matching dispatch
// table in the interpreter, indexed 1:1 by value.
type Option uint32

const (
	OpInitRange Option = iota
	OpAllocateIndices
	OpIota
	OpReverse
	OpStrideCopy
	OpCopySpanIntersectingRange

	OpPrefixPopcount
	OpNullFilterIsNull
	OpNullFilterIsNotNull
	OpTranslateSparseNullIndices
	OpStrideTranslateAndCopySparseNullIndices
	OpStrideCopyDenseNullIndices

	OpCastFilterValue
	OpCastFilterValueList

	OpNonStringFilter
	OpStringFilter
	OpSortedFilter
	OpUint32SetIdSortedEq
	OpSpecializedStorageSmallValueEq
	OpLinearFilterEq
	OpIndexedFilterEq
	OpInFilter

	OpAllocateRowLayoutBuffer
	OpInitRankMap
	OpCollectIdIntoRankMap
	OpFinalizeRanksInMap
	OpCopyToRowLayout
	OpSortRowLayout
	OpDistinct

	OpLimitOffsetIndices
	OpFindMinMaxIndex

	OpMakeChildToParentTreeStructure
	OpMakeParentToChildTreeStructure
	OpIndexSpanToBitvector
	OpFilterTree

	optionCount
)

// OptionCount is the number of distinct opcodes, sizing the interpreter's
// dispatch table.
const OptionCount = int(optionCount)

var optionNames = [optionCount]string{
	OpInitRange:                                "InitRange",
	OpAllocateIndices:                          "AllocateIndices",
	OpIota:                                     "Iota",
	OpReverse:                                  "Reverse",
	OpStrideCopy:                               "StrideCopy",
	OpCopySpanIntersectingRange:                "CopySpanIntersectingRange",
	OpPrefixPopcount:                           "PrefixPopcount",
	OpNullFilterIsNull:                         "NullFilterIsNull",
	OpNullFilterIsNotNull:                      "NullFilterIsNotNull",
	OpTranslateSparseNullIndices:               "TranslateSparseNullIndices",
	OpStrideTranslateAndCopySparseNullIndices:  "StrideTranslateAndCopySparseNullIndices",
	OpStrideCopyDenseNullIndices:               "StrideCopyDenseNullIndices",
	OpCastFilterValue:                          "CastFilterValue",
	OpCastFilterValueList:                      "CastFilterValueList",
	OpNonStringFilter:                          "NonStringFilter",
	OpStringFilter:                             "StringFilter",
	OpSortedFilter:                             "SortedFilter",
	OpUint32SetIdSortedEq:                      "Uint32SetIdSortedEq",
	OpSpecializedStorageSmallValueEq:           "SpecializedStorageSmallValueEq",
	OpLinearFilterEq:                           "LinearFilterEq",
	OpIndexedFilterEq:                          "IndexedFilterEq",
	OpInFilter:                                 "In",
	OpAllocateRowLayoutBuffer:                  "AllocateRowLayoutBuffer",
	OpInitRankMap:                              "InitRankMap",
	OpCollectIdIntoRankMap:                     "CollectIdIntoRankMap",
	OpFinalizeRanksInMap:                       "FinalizeRanksInMap",
	OpCopyToRowLayout:                          "CopyToRowLayout",
	OpSortRowLayout:                            "SortRowLayout",
	OpDistinct:                                 "Distinct",
	OpLimitOffsetIndices:                       "LimitOffsetIndices",
	OpFindMinMaxIndex:                          "FindMinMaxIndex",
	OpMakeChildToParentTreeStructure:           "MakeChildToParentTreeStructure",
	OpMakeParentToChildTreeStructure:           "MakeParentToChildTreeStructure",
	OpIndexSpanToBitvector:                     "IndexSpanToBitvector",
	OpFilterTree:                               "FilterTree",
}

func (o Option) String() string {
	if int(o) < len(optionNames) {
		if n := optionNames[o]; n != "" {
			return n
		}
	}
	return "Unknown"
}

// CostCategory classifies how an opcode's execution cost scales with the
// candidate row count n, used by the planner's running cost estimate.
type CostCategory uint8

const (
	FixedCost CostCategory = iota
	LogPerRowCost
	LinearPerRowCost
	LogLinearPerRowCost
	PostOperationLinearPerRowCost
)

// Cost returns the cost category for an opcode, grounded on the per-opcode
// classification used by the cost model.
func (o Option) Cost() CostCategory {
	switch o {
	case OpInitRange, OpAllocateIndices, OpPrefixPopcount, OpUint32SetIdSortedEq,
		OpSpecializedStorageSmallValueEq, OpLimitOffsetIndices, OpAllocateRowLayoutBuffer,
		OpInitRankMap, OpFinalizeRanksInMap:
		return FixedCost
	case OpSortedFilter, OpIndexedFilterEq:
		return LogPerRowCost
	case OpSortRowLayout:
		return LogLinearPerRowCost
	case OpDistinct, OpCopyToRowLayout, OpStrideTranslateAndCopySparseNullIndices,
		OpStrideCopyDenseNullIndices, OpFindMinMaxIndex:
		return PostOperationLinearPerRowCost
	default:
		return LinearPerRowCost
	}
}
