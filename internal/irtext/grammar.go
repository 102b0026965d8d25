package irtext

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var textLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\n]*`},
	{Name: "String", Pattern: `"(\\"|[^"])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.]*`},
	{Name: "Int", Pattern: `-?[0-9]+`},
	{Name: "Punct", Pattern: `[(){}\[\],:=]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var textParser = participle.MustBuild[fileText](
	participle.Lexer(textLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

type fileText struct {
	Functions []*funcText `@@*`
}

type funcText struct {
	Name   string       `"func" @Ident`
	Params []*paramText `"(" (@@ ("," @@)*)? ")" "{"`
	Blocks []*blockText `@@* "}"`
}

type paramText struct {
	Name string `@Ident`
	Type string `":" @Ident`
}

type blockText struct {
	Name  string      `@Ident ":"`
	Lines []*lineText `@@*`
}

// lineText is a tagged union over one instruction's textual form. Order
// matters only where two alternatives could otherwise both start matching
// the same leading tokens; participle backtracks per alternative, so a
// failed attempt just falls through to the next.
type lineText struct {
	Phi        *phiText        `  @@`
	Binary     *binaryText     `| @@`
	Call       *callText       `| @@`
	Const      *constText      `| @@`
	Load       *loadText       `| @@`
	Store      *storeText      `| @@`
	Debug      *debugText      `| @@`
	LandingPad *landingPadText `| @@`
	Br         *brText         `| @@`
	Jmp        *jmpText        `| @@`
	Ret        *retText        `| @@`
}

type phiEdgeText struct {
	Value string `"[" @Ident`
	Pred  string `"," @Ident "]"`
}

// phiText carries an explicit type, unlike ir.Printer's diagnostic dump of
// a PhiInst (which omits it): the Printer is a human-readable trace, not
// meant to round-trip, so it leans on surrounding context a reader already
// has. irtext's grammar is its own matched print/parse pair and needs the
// type written out to rebuild the phi without inspecting its edges first.
type phiText struct {
	Result string         `@Ident "=" "phi"`
	Type   string         `@Ident`
	Edges  []*phiEdgeText `@@*`
}

type binaryText struct {
	Result string `@Ident "="`
	Op     string `@("add"|"sub"|"mul"|"div"|"and"|"or"|"xor"|"lt"|"le"|"eq")`
	X      string `@Ident`
	Y      string `"," @Ident`
}

type callResultText struct {
	Result string `@Ident "="`
	Type   string `@Ident`
}

type callText struct {
	Prefix *callResultText `@@?`
	Callee string          `"call" @Ident`
	Args   []string        `"(" @Ident* ")"`
}

type constText struct {
	Result string `@Ident "=" "const"`
	Type   string `@Ident`
	Imm    int64  `@Int`
}

type loadText struct {
	Result string `@Ident "=" "load"`
	Type   string `@Ident`
	Addr   string `@Ident`
}

type storeText struct {
	Value string `"store" @Ident`
	Addr  string `"," @Ident`
}

type debugText struct {
	Note string `"dbg" @String`
}

type landingPadText struct {
	Marker string `@"landingpad"`
}

type retText struct {
	Value string `"ret" @Ident?`
}

type jmpText struct {
	Target string `"jmp" @Ident`
}

type brText struct {
	Cond  string `"br" @Ident`
	True  string `"," @Ident`
	False string `"," @Ident`
}
