/*

Process of compilation

Program Text ->
	front ->
Abstract Syntax Tree (ast) ->
	check ->
Effect-checked Program ->
	back ->
LLVM IR Text ->
	link ->
Binary Executable

A program that fails the checker never reaches the code generator.

*/
package compiler
