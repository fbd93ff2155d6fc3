// Command server runs the oakley-metrics dashboard API.
package main

func main() {
	Execute()
}
