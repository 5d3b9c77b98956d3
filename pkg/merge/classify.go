package merge

import (
	"github.com/walteh/cxref/pkg/frontend"
	"github.com/walteh/cxref/pkg/token"
)

// Classify maps a merged token's lexical kind, its semantic node kind,
// and the kind of the node's resolved definition to a token category.
//
// The priority order is fixed: inclusion directives and macro
// instantiations dominate everything, then literals by lexical kind,
// then identifier refinement through the node/definition kinds, then
// the plain lexical defaults.
func Classify(lex frontend.LexKind, node, def frontend.NodeKind) token.Type {
	if node == frontend.KindInclusionDirective || node == frontend.KindMacroInstantiation {
		return token.Preprocessor
	}

	switch lex {
	case frontend.LexStringLiteral:
		return token.StringLiteral
	case frontend.LexNumberLiteral:
		return token.NumberLiteral
	case frontend.LexOtherLiteral:
		return token.OtherLiteral
	case frontend.LexComment:
		return token.Comment
	case frontend.LexKeyword:
		return token.Keyword
	case frontend.LexPunctuation:
		return token.Punctuation
	case frontend.LexIdentifier:
		if isTypeKind(node) || isTypeKind(def) {
			// Types render differently but stay in the name category.
			return token.Name
		}
		if isVariableKind(node) || isVariableKind(def) {
			return token.Variable
		}
		return token.Name
	}

	return token.Other
}

func isTypeKind(k frontend.NodeKind) bool {
	switch k {
	case frontend.KindStructDecl, frontend.KindClassDecl, frontend.KindClassTemplate:
		return true
	}
	return false
}

func isVariableKind(k frontend.NodeKind) bool {
	switch k {
	case frontend.KindVarDecl, frontend.KindParmDecl:
		return true
	}
	return false
}

// QualifiedName joins the declaration's enclosing scope chain with "::",
// stopping at the translation unit.
func QualifiedName(n *frontend.Node) string {
	parent := n.SemanticParent
	if parent == nil || parent.Kind == frontend.KindTranslationUnit {
		return n.DisplayName
	}
	return QualifiedName(parent) + "::" + n.DisplayName
}
