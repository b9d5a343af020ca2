// Command aisight runs the assistive camera: door guidance and money counting.
package main

func main() {
	Execute()
}
