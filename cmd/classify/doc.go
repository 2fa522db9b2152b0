// Command classify labels texts with a checkpoint written by finetune.
// Texts are taken from the arguments, or one per line from stdin when none
// are given, and printed as JSON lines.
package main
