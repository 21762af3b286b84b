package main

import "github.com/nwhisler/Dynamic-Ensemble-Reasoning/cmd"

func main() {
	cmd.Execute()
}
